package habbo

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testClient(baseURL string) *Client {
	return NewClient(testLogger(), ClientOptions{BaseURL: baseURL})
}

func TestFetchProfileSuccess(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/public/users", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("name"); got != "jal0usie" {
			t.Errorf("lookup name = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"uniqueId":"hhbr-abc123","name":"jal0usie","motto":"oi","figureString":"hr-100","online":true,"memberSince":"2015-03-01T00:00:00.000+0000","profileVisible":true}`)
	})
	mux.HandleFunc("/api/public/users/hhbr-abc123/badges", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[{"code":"ADM"},{"code":"VIP"},{"code":""}]`)
	})
	mux.HandleFunc("/api/public/users/hhbr-abc123/friends", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[{"uniqueId":"hhbr-f1"},{"uniqueId":"hhbr-f2"}]`)
	})
	mux.HandleFunc("/extradata/public/users/hhbr-abc123/photos", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[{"id":"p1"}]`)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	profile, err := testClient(srv.URL).FetchProfile(context.Background(), "jal0usie", "br")
	if err != nil {
		t.Fatalf("FetchProfile: %v", err)
	}

	if profile.UniqueID != "hhbr-abc123" {
		t.Errorf("UniqueID = %q", profile.UniqueID)
	}
	if profile.Motto != "oi" || !profile.Online {
		t.Errorf("profile = %+v", profile)
	}
	if !reflect.DeepEqual(profile.BadgeCodes, []string{"ADM", "VIP"}) {
		t.Errorf("BadgeCodes = %v (empty codes must be dropped)", profile.BadgeCodes)
	}
	if !reflect.DeepEqual(profile.FriendIDs, []string{"hhbr-f1", "hhbr-f2"}) {
		t.Errorf("FriendIDs = %v", profile.FriendIDs)
	}
	if !reflect.DeepEqual(profile.PhotoIDs, []string{"p1"}) {
		t.Errorf("PhotoIDs = %v", profile.PhotoIDs)
	}
	if profile.FetchedAt.IsZero() {
		t.Error("FetchedAt not set")
	}
}

func TestFetchProfileNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchProfile(context.Background(), "ghost", "br")
	if !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("err = %v, want ErrProfileNotFound", err)
	}
	if IsTransient(err) {
		t.Error("not-found must not be transient")
	}
}

func TestFetchProfilePrivateBehavesAsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"uniqueId":"hhbr-abc123","name":"jal0usie","profileVisible":false}`)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchProfile(context.Background(), "jal0usie", "br")
	if !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("err = %v, want ErrProfileNotFound", err)
	}
}

func TestFetchProfileServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchProfile(context.Background(), "jal0usie", "br")
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsTransient(err) {
		t.Fatalf("err = %v, want transient", err)
	}
	if errors.Is(err, ErrProfileNotFound) {
		t.Error("5xx must not map to not-found")
	}
}

func TestFetchProfileSubFetchFailureFailsWhole(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/public/users", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"uniqueId":"hhbr-abc123","name":"jal0usie","profileVisible":true}`)
	})
	mux.HandleFunc("/api/public/users/hhbr-abc123/badges", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	_, err := testClient(srv.URL).FetchProfile(context.Background(), "jal0usie", "br")
	if err == nil {
		t.Fatal("expected error when badges fetch fails")
	}
	if !IsTransient(err) {
		t.Fatalf("err = %v, want transient", err)
	}
}

func TestFetchProfileUnknownHotel(t *testing.T) {
	_, err := testClient("").FetchProfile(context.Background(), "jal0usie", "xx")
	if !errors.Is(err, ErrUnknownHotel) {
		t.Fatalf("err = %v, want ErrUnknownHotel", err)
	}
}

func TestFetchProfileEmptyName(t *testing.T) {
	_, err := testClient("").FetchProfile(context.Background(), "", "br")
	if err == nil {
		t.Fatal("expected error for empty name")
	}
}

func TestNormalizeHotel(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"br", "com.br", true},
		{"BR", "com.br", true},
		{" us ", "com", true},
		{"com", "com", true},
		{"tr", "com.tr", true},
		{"es", "es", true},
		{"de", "de", true},
		{"fi", "fi", true},
		{"fr", "fr", true},
		{"it", "it", true},
		{"nl", "nl", true},
		{"xx", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, err := NormalizeHotel(tt.in)
		if tt.ok {
			if err != nil {
				t.Errorf("NormalizeHotel(%q) error: %v", tt.in, err)
			} else if got != tt.want {
				t.Errorf("NormalizeHotel(%q) = %q, want %q", tt.in, got, tt.want)
			}
		} else if err == nil {
			t.Errorf("NormalizeHotel(%q) should fail", tt.in)
		}
	}
}

func TestCircuitBreakerOpensAfterFailures(t *testing.T) {
	cb := NewCircuitBreaker()

	for i := 0; i < 10 && cb.Allow(); i++ {
		cb.RecordFailure()
	}
	if cb.Allow() {
		t.Fatal("breaker should be open after repeated failures")
	}
}
