package guide

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"lineupd/internal/errs"
)

func TestEmptyGuideIsWellFormed(t *testing.T) {
	g := EmptyGuide()
	if !strings.Contains(string(g), "<tv>") {
		t.Fatalf("EmptyGuide missing <tv>: %s", g)
	}
}

func TestFetchPassesThroughUTF8Document(t *testing.T) {
	const doc = `<?xml version="1.0" encoding="UTF-8"?><tv><channel id="cnn.us"/></tv>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml; charset=utf-8")
		w.Write([]byte(doc))
	}))
	defer srv.Close()

	got, err := Fetch(context.Background(), srv.URL, nil, "", time.Second)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !strings.Contains(string(got), `id="cnn.us"`) {
		t.Fatalf("unexpected body: %s", got)
	}
}

func TestFetchFailureIsGuideFetchFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := Fetch(context.Background(), srv.URL, nil, "", time.Second)
	if !errors.Is(err, errs.ErrGuideFetchFailed) {
		t.Fatalf("err = %v, want ErrGuideFetchFailed", err)
	}
}

func TestFetchEmptyURLIsGuideFetchFailed(t *testing.T) {
	_, err := Fetch(context.Background(), "", nil, "", time.Second)
	if !errors.Is(err, errs.ErrGuideFetchFailed) {
		t.Fatalf("err = %v, want ErrGuideFetchFailed", err)
	}
}
