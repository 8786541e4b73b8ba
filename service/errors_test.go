package service_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"secure-voting/service"
)

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		kind   service.ErrorKind
		status int
	}{
		{&service.Error{Kind: service.KindValidation, Message: "bad"}, service.KindValidation, http.StatusBadRequest},
		{&service.Error{Kind: service.KindInvalidKey}, service.KindInvalidKey, http.StatusBadRequest},
		{&service.Error{Kind: service.KindKeyExpired}, service.KindKeyExpired, http.StatusBadRequest},
		{&service.Error{Kind: service.KindAlreadyUsed}, service.KindAlreadyUsed, http.StatusBadRequest},
		{&service.Error{Kind: service.KindNotFound}, service.KindNotFound, http.StatusNotFound},
		{&service.Error{Kind: service.KindRateLimited}, service.KindRateLimited, http.StatusTooManyRequests},
		{errors.New("boom"), service.KindInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := service.KindOf(tt.err); got != tt.kind {
			t.Fatalf("KindOf(%v) = %s, want %s", tt.err, got, tt.kind)
		}
		if got := service.HTTPStatus(tt.err); got != tt.status {
			t.Fatalf("HTTPStatus(%v) = %d, want %d", tt.err, got, tt.status)
		}
	}
}

func TestErrorMatching(t *testing.T) {
	err := fmt.Errorf("request failed: %w", &service.Error{Kind: service.KindKeyExpired, Message: "expired"})

	if !errors.Is(err, service.ErrKeyExpired) {
		t.Fatalf("wrapped error should match its kind")
	}
	if errors.Is(err, service.ErrInvalidKey) {
		t.Fatalf("wrapped error should not match another kind")
	}
	if service.KindOf(err) != service.KindKeyExpired {
		t.Fatalf("KindOf should see through wrapping")
	}
}

func TestPublicMessage(t *testing.T) {
	internal := &service.Error{Kind: service.KindInternal, Message: "failed to load", Err: errors.New("dial tcp 10.0.0.5:5432")}
	if msg := service.PublicMessage(internal); msg != "internal server error" {
		t.Fatalf("internal error leaked: %q", msg)
	}
	if msg := service.PublicMessage(errors.New("raw")); msg != "internal server error" {
		t.Fatalf("foreign error leaked: %q", msg)
	}
	if msg := service.PublicMessage(&service.Error{Kind: service.KindNotFound, Message: "user not found"}); msg != "user not found" {
		t.Fatalf("unexpected message %q", msg)
	}
}
