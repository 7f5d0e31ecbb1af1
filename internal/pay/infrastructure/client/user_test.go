package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/trademall/orderflow/internal/pay/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestDeductMoney(t *testing.T) {
	var gotPw, gotAmount string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/users/money/deduct" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		gotPw = r.URL.Query().Get("pw")
		gotAmount = r.URL.Query().Get("amount")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := NewUserClient(srv.URL, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if err := c.DeductMoney(context.Background(), "123456", 4000); err != nil {
		t.Fatalf("deduct: %v", err)
	}
	if gotPw != "123456" || gotAmount != "4000" {
		t.Fatalf("pw=%s amount=%s", gotPw, gotAmount)
	}
}

func TestDeductMoneyInvalidCredential(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c, _ := NewUserClient(srv.URL, testLogger())
	if err := c.DeductMoney(context.Background(), "wrong", 100); !errors.Is(err, domain.ErrInvalidCredential) {
		t.Fatalf("err = %v, want ErrInvalidCredential", err)
	}
}

func TestDeductMoneyInsufficientFunds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
	}))
	defer srv.Close()

	c, _ := NewUserClient(srv.URL, testLogger())
	if err := c.DeductMoney(context.Background(), "123456", 1<<40); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
}

func TestDeductMoneyTransportFailure(t *testing.T) {
	c, _ := NewUserClient("http://127.0.0.1:1", testLogger())
	if err := c.DeductMoney(context.Background(), "123456", 100); !errors.Is(err, ErrCollaboratorUnavailable) {
		t.Fatalf("err = %v, want ErrCollaboratorUnavailable", err)
	}
}

func TestUserFallbackNeverDeducts(t *testing.T) {
	f := UserFallback{Log: testLogger()}
	if err := f.DeductMoney(context.Background(), "123456", 100); !errors.Is(err, ErrCollaboratorUnavailable) {
		t.Fatal("fallback must refuse deduction")
	}
}
