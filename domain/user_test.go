package domain

import "testing"

func TestCountUsers(t *testing.T) {
	s := CountUsers([]User{
		{Status: StatusApproved},
		{Status: StatusPending},
		{Status: StatusPending},
		{Status: StatusRejected},
	})
	if s != (UserStats{Total: 4, Approved: 1, Pending: 2, Rejected: 1}) {
		t.Fatalf("unexpected stats: %+v", s)
	}
}

func TestParseApprovalStatus(t *testing.T) {
	cases := map[string]ApprovalStatus{
		"pending":  StatusPending,
		"승인":       StatusApproved,
		"rejected": StatusRejected,
		"거절":       StatusRejected,
	}
	for in, want := range cases {
		got, err := ParseApprovalStatus(in)
		if err != nil || got != want {
			t.Fatalf("ParseApprovalStatus(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseApprovalStatus("maybe"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}
