package approval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrantAndIsApproved(t *testing.T) {
	s := NewStore(t.TempDir())
	assert.False(t, s.IsApproved("code_review"))

	require.NoError(t, s.GrantApproval("code_review"))
	assert.True(t, s.IsApproved("code_review"))
}

func TestRevokeApproval(t *testing.T) {
	s := NewStore(t.TempDir())
	require.NoError(t, s.GrantApproval("plan_review"))
	require.NoError(t, s.RevokeApproval("plan_review"))
	assert.False(t, s.IsApproved("plan_review"))

	// Revoking an already-absent approval is not an error.
	require.NoError(t, s.RevokeApproval("plan_review"))
}

func TestListApprovals(t *testing.T) {
	s := NewStore(t.TempDir())
	require.NoError(t, s.GrantApproval("plan_review"))
	require.NoError(t, s.GrantApproval("code_review"))

	phases, err := s.ListApprovals()
	require.NoError(t, err)
	assert.Equal(t, []string{"code_review", "plan_review"}, phases)
}

func TestListApprovals_MissingDirIsEmptyNotError(t *testing.T) {
	s := NewStore(t.TempDir() + "/does-not-exist")
	phases, err := s.ListApprovals()
	require.NoError(t, err)
	assert.Empty(t, phases)
}

func TestWaitForApproval_AlreadyApprovedReturnsImmediately(t *testing.T) {
	s := NewStore(t.TempDir())
	require.NoError(t, s.GrantApproval("lint_check"))
	s.PollInterval = time.Millisecond

	done := make(chan bool, 1)
	go func() { done <- s.WaitForApproval("lint_check", 1) }()

	select {
	case ok := <-done:
		assert.True(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("WaitForApproval did not return for an already-approved phase")
	}
}

func TestWaitForApproval_GrantedWhileWaiting(t *testing.T) {
	s := NewStore(t.TempDir())
	s.PollInterval = 20 * time.Millisecond

	done := make(chan bool, 1)
	go func() { done <- s.WaitForApproval("final_verification", 1) }()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, s.GrantApproval("final_verification"))

	select {
	case ok := <-done:
		assert.True(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("WaitForApproval did not observe the late grant")
	}
}

func TestWaitForApproval_TimesOut(t *testing.T) {
	s := NewStore(t.TempDir())
	s.PollInterval = 5 * time.Millisecond

	ok := s.WaitForApproval("pr_creation", 1.0/3600/50) // 20ms timeout
	assert.False(t, ok)
}
