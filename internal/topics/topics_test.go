package topics

import (
	"errors"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func blockMatrix() *mat.Dense {
	// Two clear term blocks: documents 0-1 use the first two terms,
	// documents 2-3 the last two.
	return mat.NewDense(4, 4, []float64{
		1.0, 0.9, 0.0, 0.0,
		0.8, 1.0, 0.0, 0.0,
		0.0, 0.0, 1.0, 0.9,
		0.0, 0.0, 0.8, 1.0,
	})
}

func TestFitRejectsBadTopicCount(t *testing.T) {
	x := mat.NewDense(4, 3, []float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
		1, 1, 0,
	})

	for _, k := range []int{0, -1, 4, 5} {
		_, err := Fit(x, Options{Topics: k, MaxIter: 10, Seed: 1})
		if !errors.Is(err, ErrTopicCount) {
			t.Errorf("k=%d: expected ErrTopicCount, got %v", k, err)
		}
	}
}

func TestFitRejectsBadIterations(t *testing.T) {
	x := blockMatrix()
	_, err := Fit(x, Options{Topics: 2, MaxIter: 0, Seed: 1})
	if err == nil {
		t.Fatal("expected error for zero iteration cap")
	}
	if errors.Is(err, ErrTopicCount) {
		t.Error("iteration cap error should not be ErrTopicCount")
	}
}

func TestFitNilMatrix(t *testing.T) {
	_, err := Fit(nil, Options{Topics: 2, MaxIter: 10})
	if err == nil {
		t.Fatal("expected error for nil matrix")
	}
}

func TestFitDeterministicAcrossWorkers(t *testing.T) {
	x := mat.NewDense(6, 5, []float64{
		0.3, 0.7, 0.1, 0.0, 0.2,
		0.9, 0.2, 0.0, 0.4, 0.1,
		0.0, 0.5, 0.8, 0.1, 0.0,
		0.2, 0.0, 0.3, 0.9, 0.5,
		0.6, 0.1, 0.0, 0.2, 0.8,
		0.1, 0.4, 0.6, 0.0, 0.3,
	})

	for _, workers := range []int{2, 4, 7} {
		one, err := Fit(x, Options{Topics: 3, MaxIter: 50, Seed: 9, Workers: 1})
		if err != nil {
			t.Fatalf("workers=1: %v", err)
		}
		many, err := Fit(x, Options{Topics: 3, MaxIter: 50, Seed: 9, Workers: workers})
		if err != nil {
			t.Fatalf("workers=%d: %v", workers, err)
		}
		if !mat.Equal(one.W, many.W) {
			t.Errorf("workers=%d: W differs from single-worker run", workers)
		}
		if !mat.Equal(one.H, many.H) {
			t.Errorf("workers=%d: H differs from single-worker run", workers)
		}
	}
}

func TestFitRecoversBlockStructure(t *testing.T) {
	m, err := Fit(blockMatrix(), Options{Topics: 2, MaxIter: 200, Seed: 9, Workers: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Topic columns permute freely between runs, so compare assignments,
	// not raw factor values.
	majorities := m.MajorityTopics()
	if majorities[0] != majorities[1] {
		t.Errorf("expected documents 0 and 1 to share a topic, got %v", majorities)
	}
	if majorities[2] != majorities[3] {
		t.Errorf("expected documents 2 and 3 to share a topic, got %v", majorities)
	}
	if majorities[0] == majorities[2] {
		t.Errorf("expected the two blocks to have distinct topics, got %v", majorities)
	}
	for i, label := range majorities {
		if label < 1 || label > 2 {
			t.Errorf("document %d: majority label %d out of range [1,2]", i, label)
		}
	}
}

func TestTopTermsFollowBlocks(t *testing.T) {
	m, err := Fit(blockMatrix(), Options{Topics: 2, MaxIter: 200, Seed: 9, Workers: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	terms := []string{"alpha", "bravo", "charlie", "delta"}
	top := m.TopTerms(terms, 2)
	if len(top) != 2 {
		t.Fatalf("expected 2 topics, got %d", len(top))
	}

	firstBlockTopic := m.MajorityTopics()[0] - 1
	got := map[string]bool{top[firstBlockTopic][0]: true, top[firstBlockTopic][1]: true}
	if !got["alpha"] || !got["bravo"] {
		t.Errorf("expected alpha/bravo atop the first block's topic, got %v", top[firstBlockTopic])
	}
}

func TestLabels(t *testing.T) {
	m := &Model{
		W: mat.NewDense(1, 3, []float64{1, 2, 3}),
		H: mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6}),
	}
	labels := m.Labels()
	want := []string{"topic_1", "topic_2", "topic_3"}
	for i := range want {
		if labels[i] != want[i] {
			t.Errorf("expected %q at %d, got %q", want[i], i, labels[i])
		}
	}
}

func TestDocTable(t *testing.T) {
	m := &Model{
		W: mat.NewDense(2, 2, []float64{
			0.123, 0.456,
			0.9, 0.1,
		}),
		H: mat.NewDense(2, 3, []float64{1, 0, 0, 0, 1, 0}),
	}

	table := m.DocTable([]string{"Eagle Crest", "Bear Lake"})
	if table.RowLabels[0] != "Eagle Crest" || table.RowLabels[1] != "Bear Lake" {
		t.Errorf("unexpected row labels: %v", table.RowLabels)
	}
	wantCols := []string{"topic_1", "topic_2", "majority_topic"}
	for i := range wantCols {
		if table.ColLabels[i] != wantCols[i] {
			t.Errorf("expected column %q, got %q", wantCols[i], table.ColLabels[i])
		}
	}
	if table.Cells[0][0] != 0.12 || table.Cells[0][1] != 0.46 {
		t.Errorf("expected rounded loadings [0.12 0.46], got %v", table.Cells[0][:2])
	}
	if table.Cells[0][2] != 2 {
		t.Errorf("expected majority topic 2 for row 0, got %v", table.Cells[0][2])
	}
	if table.Cells[1][2] != 1 {
		t.Errorf("expected majority topic 1 for row 1, got %v", table.Cells[1][2])
	}
}

func TestTermTable(t *testing.T) {
	m := &Model{
		W: mat.NewDense(1, 2, []float64{1, 0}),
		H: mat.NewDense(2, 2, []float64{
			0.005, 1.234,
			2.5, 0.449,
		}),
	}

	table := m.TermTable([]string{"lake", "summit"})
	if table.RowLabels[0] != "topic_1" || table.RowLabels[1] != "topic_2" {
		t.Errorf("unexpected row labels: %v", table.RowLabels)
	}
	if table.ColLabels[0] != "lake" || table.ColLabels[1] != "summit" {
		t.Errorf("unexpected column labels: %v", table.ColLabels)
	}
	if table.Cells[0][0] != 0.01 || table.Cells[0][1] != 1.23 {
		t.Errorf("expected [0.01 1.23], got %v", table.Cells[0])
	}
	if table.Cells[1][0] != 2.5 || table.Cells[1][1] != 0.45 {
		t.Errorf("expected [2.5 0.45], got %v", table.Cells[1])
	}
}
