package storage

import (
	"testing"
	"time"

	"taskflow/domain"
)

func TestUserEntityRoundTrip(t *testing.T) {
	u := domain.User{
		Subject:     "sub-1",
		Email:       "kim@example.com",
		Name:        "Kim",
		Status:      domain.StatusApproved,
		RequestedAt: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
		DecidedAt:   time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC),
	}
	data, err := encodeUserEntity(u)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := decodeUserEntity(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Subject != u.Subject || got.Email != u.Email || got.Name != u.Name || got.Status != u.Status {
		t.Fatalf("unexpected user: %+v", got)
	}
	if !got.RequestedAt.Equal(u.RequestedAt) || !got.DecidedAt.Equal(u.DecidedAt) {
		t.Fatalf("unexpected timestamps: %+v", got)
	}
}

func TestDecodeUserEntityAcceptsLegacyStatus(t *testing.T) {
	data := []byte(`{"PartitionKey":"users","RowKey":"sub-2","Email":"lee@example.com","Name":"Lee","Status":"대기","RequestedAt":"2024-05-01T00:00:00Z"}`)
	u, err := decodeUserEntity(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if u.Status != domain.StatusPending || u.Subject != "sub-2" || !u.DecidedAt.IsZero() {
		t.Fatalf("unexpected user: %+v", u)
	}
}

func TestDecodeUserEntityRejectsUnknownStatus(t *testing.T) {
	if _, err := decodeUserEntity([]byte(`{"RowKey":"x","Status":"maybe"}`)); err == nil {
		t.Fatal("expected error for unknown status")
	}
}
