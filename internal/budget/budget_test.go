package budget

import "testing"

func ptr[T any](v T) *T { return &v }

func TestCreate_InheritsUnsetFieldsFromParent(t *testing.T) {
	tr := New()
	tr.Create("parent", Options{MaxTokens: ptr(int64(1000))}, "")

	child := "child"
	b := tr.Create(child, Options{}, "parent")
	if b.MaxTokens == nil || *b.MaxTokens != 1000 {
		t.Fatalf("expected inherited MaxTokens 1000, got %v", b.MaxTokens)
	}
}

func TestCreateSubagent_TightensPerAxis(t *testing.T) {
	tr := New()
	tr.Create("parent", Options{MaxTokens: ptr(int64(1000)), MaxChildren: ptr(5)}, "")

	_, b, err := tr.CreateSubagent("parent", Options{MaxTokens: ptr(int64(2000))})
	if err != nil {
		t.Fatalf("CreateSubagent: %v", err)
	}
	if *b.MaxTokens != 1000 {
		t.Fatalf("expected tightened MaxTokens 1000 (min of 1000,2000), got %d", *b.MaxTokens)
	}
	if b.MaxChildren == nil || *b.MaxChildren != 5 {
		t.Fatalf("expected inherited MaxChildren 5, got %v", b.MaxChildren)
	}
}

func TestCreateSubagent_UnlimitedParentDoesNotConstrain(t *testing.T) {
	tr := New()
	tr.Create("parent", Options{}, "")

	_, b, err := tr.CreateSubagent("parent", Options{MaxTokens: ptr(int64(500))})
	if err != nil {
		t.Fatalf("CreateSubagent: %v", err)
	}
	if b.MaxTokens == nil || *b.MaxTokens != 500 {
		t.Fatalf("expected opts value 500 when parent unlimited, got %v", b.MaxTokens)
	}
}

func TestRecordUsage_Accumulates(t *testing.T) {
	tr := New()
	tr.Create("run", Options{}, "")

	if err := tr.RecordUsage("run", 100, 0.5); err != nil {
		t.Fatalf("RecordUsage: %v", err)
	}
	if err := tr.RecordUsage("run", 50, 0.25); err != nil {
		t.Fatalf("RecordUsage: %v", err)
	}

	b, _ := tr.Get("run")
	if b.UsedTokens != 150 {
		t.Fatalf("expected 150 tokens, got %d", b.UsedTokens)
	}
	if b.UsedCost != 0.75 {
		t.Fatalf("expected 0.75 cost, got %f", b.UsedCost)
	}
}

func TestRecordResponse_PrefersTotalOverSplit(t *testing.T) {
	tr := New()
	tr.Create("run", Options{}, "")

	err := tr.RecordResponse("run", ResponseUsage{
		TotalTokens:  ptr(int64(300)),
		InputTokens:  ptr(int64(100)),
		OutputTokens: ptr(int64(100)),
	})
	if err != nil {
		t.Fatalf("RecordResponse: %v", err)
	}
	b, _ := tr.Get("run")
	if b.UsedTokens != 300 {
		t.Fatalf("expected total 300 to win over split 200, got %d", b.UsedTokens)
	}
}

func TestRecordResponse_FallsBackToInputPlusOutput(t *testing.T) {
	tr := New()
	tr.Create("run", Options{}, "")

	err := tr.RecordResponse("run", ResponseUsage{
		InputTokens:  ptr(int64(70)),
		OutputTokens: ptr(int64(30)),
	})
	if err != nil {
		t.Fatalf("RecordResponse: %v", err)
	}
	b, _ := tr.Get("run")
	if b.UsedTokens != 100 {
		t.Fatalf("expected 100, got %d", b.UsedTokens)
	}
}

func TestChildStartedAndCompleted_FoldsUsageAndClampsCount(t *testing.T) {
	tr := New()
	tr.Create("parent", Options{}, "")

	if err := tr.ChildStarted("parent", "child"); err != nil {
		t.Fatalf("ChildStarted: %v", err)
	}
	p, _ := tr.Get("parent")
	if p.ActiveChildren != 1 {
		t.Fatalf("expected active_children 1, got %d", p.ActiveChildren)
	}

	if err := tr.RecordUsage("child", 40, 1.0); err != nil {
		t.Fatalf("RecordUsage: %v", err)
	}
	if err := tr.ChildCompleted("parent", "child"); err != nil {
		t.Fatalf("ChildCompleted: %v", err)
	}

	p, _ = tr.Get("parent")
	if p.ActiveChildren != 0 {
		t.Fatalf("expected active_children back to 0, got %d", p.ActiveChildren)
	}
	if p.UsedTokens != 40 || p.UsedCost != 1.0 {
		t.Fatalf("expected child usage folded into parent, got tokens=%d cost=%f", p.UsedTokens, p.UsedCost)
	}

	// Completing again must not go negative.
	if err := tr.ChildCompleted("parent", "child"); err != nil {
		t.Fatalf("ChildCompleted: %v", err)
	}
	p, _ = tr.Get("parent")
	if p.ActiveChildren != 0 {
		t.Fatalf("expected active_children clamped at 0, got %d", p.ActiveChildren)
	}
}

func TestPreAPI_RejectsWhenProjectedExceedsLimit(t *testing.T) {
	tr := New()
	tr.Create("run", Options{MaxTokens: ptr(int64(100))}, "")
	_ = tr.RecordUsage("run", 90, 0)

	d, err := tr.PreAPI("run", 20, Policy{})
	if err != nil {
		t.Fatalf("PreAPI: %v", err)
	}
	if d.Action != ActionError {
		t.Fatalf("expected default ActionError, got %v", d.Action)
	}
}

func TestPreAPI_AllowsWhenUnderLimit(t *testing.T) {
	tr := New()
	tr.Create("run", Options{MaxTokens: ptr(int64(100))}, "")
	_ = tr.RecordUsage("run", 10, 0)

	d, err := tr.PreAPI("run", 20, Policy{})
	if err != nil {
		t.Fatalf("PreAPI: %v", err)
	}
	if d.Action != ActionNone {
		t.Fatalf("expected no action under limit, got %v", d.Action)
	}
}

func TestSubagentSpawn_RejectsAtChildCap(t *testing.T) {
	tr := New()
	tr.Create("parent", Options{MaxChildren: ptr(1)}, "")
	_ = tr.ChildStarted("parent", "child-1")

	d, err := tr.SubagentSpawn("parent", Policy{OnChildrenLimit: ActionCancel})
	if err != nil {
		t.Fatalf("SubagentSpawn: %v", err)
	}
	if d.Action != ActionCancel {
		t.Fatalf("expected configured ActionCancel, got %v", d.Action)
	}
}
