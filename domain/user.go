package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrAlreadyRegistered = errors.New("user already registered")
	ErrStaleUser         = errors.New("user changed concurrently")
)

// ApprovalStatus is the admission state of a signed-up user.
type ApprovalStatus string

const (
	StatusPending  ApprovalStatus = "pending"
	StatusApproved ApprovalStatus = "approved"
	StatusRejected ApprovalStatus = "rejected"
)

// ParseApprovalStatus also accepts the Korean labels of the old user table.
func ParseApprovalStatus(s string) (ApprovalStatus, error) {
	switch s {
	case "pending", "대기":
		return StatusPending, nil
	case "approved", "승인":
		return StatusApproved, nil
	case "rejected", "거절":
		return StatusRejected, nil
	}
	return "", fmt.Errorf("unknown approval status %q", s)
}

// User is an identity known to the approval registry.
type User struct {
	Subject     string         `json:"id"`
	Email       string         `json:"email"`
	Name        string         `json:"name"`
	Status      ApprovalStatus `json:"status"`
	RequestedAt time.Time      `json:"requestedAt"`
	DecidedAt   time.Time      `json:"decidedAt,omitzero"`
}

// UserStats counts registered users by approval status.
type UserStats struct {
	Total    int `json:"total"`
	Approved int `json:"approved"`
	Pending  int `json:"pending"`
	Rejected int `json:"rejected"`
}

// CountUsers tallies users per approval status.
func CountUsers(users []User) UserStats {
	var s UserStats
	for _, u := range users {
		s.Total++
		switch u.Status {
		case StatusApproved:
			s.Approved++
		case StatusPending:
			s.Pending++
		case StatusRejected:
			s.Rejected++
		}
	}
	return s
}
