package agentloop

import "testing"

func TestDetectLoop(t *testing.T) {
	tests := []struct {
		name   string
		sigs   []string
		window int
		want   bool
	}{
		{"too few", []string{"a", "a"}, 3, false},
		{"constant", []string{"x", "a", "a", "a"}, 3, true},
		{"alternating", []string{"a", "b", "a", "b"}, 4, true},
		{"triple pattern", []string{"a", "b", "c", "a", "b", "c"}, 6, true},
		{"varied", []string{"a", "b", "c"}, 3, false},
		{"window of one", []string{"a"}, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectLoop(tt.sigs, tt.window); got != tt.want {
				t.Errorf("DetectLoop(%v, %d) = %v, want %v", tt.sigs, tt.window, got, tt.want)
			}
		})
	}
}

func TestReviewSignatureIgnoresOrder(t *testing.T) {
	a := &ReviewResult{Issues: []Issue{
		{Severity: SeverityMajor, Category: IssueLogic, Description: "off by one"},
		{Severity: SeverityMinor, Category: IssueCodeStyle, Description: "naming"},
	}}
	b := &ReviewResult{Issues: []Issue{
		{Severity: SeverityMinor, Category: IssueCodeStyle, Description: "Naming "},
		{Severity: SeverityMajor, Category: IssueLogic, Description: "off by one"},
	}}
	if reviewSignature(a) != reviewSignature(b) {
		t.Error("signatures should match regardless of order and case")
	}
	c := &ReviewResult{Issues: a.Issues[:1]}
	if reviewSignature(a) == reviewSignature(c) {
		t.Error("different issue sets should differ")
	}
}

func TestStallDetector(t *testing.T) {
	d := &stallDetector{window: 3}
	same := &ReviewResult{Issues: []Issue{{Severity: SeverityMajor, Description: "still broken"}}}
	other := &ReviewResult{Issues: []Issue{{Severity: SeverityMinor, Description: "nit"}}}

	if d.observe(same) || d.observe(same) {
		t.Fatal("two reviews cannot stall a window of three")
	}
	if !d.observe(same) {
		t.Error("three identical reviews should stall")
	}
	if d.observe(other) {
		t.Error("a changed review breaks the stall")
	}

	alt := &stallDetector{window: 4}
	for _, r := range []*ReviewResult{same, other, same} {
		alt.observe(r)
	}
	if alt.observe(other) {
		t.Error("alternating issue sets are not a stall")
	}
}
