package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"

	"github.com/rushteam/solfeed/core"
)

func TestPipelineClient_Score(t *testing.T) {
	var gotKey string
	var gotReq ScoreRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != scorePath || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotKey = r.Header.Get(HeaderInternalAPIKey)
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"predictions":[{"post_id":"p1","scores":{"like":0.8},"final_score":2.5},{"post_id":"p2","scores":{"like":0.1}}]}`))
	}))
	defer srv.Close()

	c := NewPipelineClient(srv.URL+"/", "secret")
	resp, err := c.Score(context.Background(), &ScoreRequest{
		UserWallet: "w1",
		Candidates: []ScoreCandidate{{PostID: "p1"}, {PostID: "p2"}},
	})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if gotKey != "secret" {
		t.Errorf("api key header = %q", gotKey)
	}
	if gotReq.UserWallet != "w1" || len(gotReq.Candidates) != 2 {
		t.Errorf("request not forwarded: %+v", gotReq)
	}
	if len(resp.Predictions) != 2 {
		t.Fatalf("predictions = %d, want 2", len(resp.Predictions))
	}
	if fs := resp.Predictions[0].FinalScore; fs == nil || *fs != 2.5 {
		t.Errorf("final_score = %v, want 2.5", fs)
	}
	// final_score 缺失保持 nil，由调用方按权重计算
	if resp.Predictions[1].FinalScore != nil {
		t.Errorf("missing final_score should be nil")
	}
}

func TestPipelineClient_Retrieve(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req RetrieveRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Limit != 30 || len(req.ExcludeIDs) != 1 {
			t.Errorf("unexpected request %+v", req)
		}
		_, _ = w.Write([]byte(`{"candidates":[{"post_id":"x","creator_wallet":"c","tags":["a"],"scores":{"like":0.3},"final_score":1.2}],"taste_profile":"cats"}`))
	}))
	defer srv.Close()

	c := NewPipelineClient(srv.URL, "")
	resp, err := c.Retrieve(context.Background(), &RetrieveRequest{UserWallet: "w", Limit: 30, ExcludeIDs: []string{"seen"}})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(resp.Candidates) != 1 || resp.Candidates[0].FinalScore != 1.2 {
		t.Errorf("candidates = %+v", resp.Candidates)
	}
	if resp.TasteProfile == nil || *resp.TasteProfile != "cats" {
		t.Errorf("taste_profile = %v", resp.TasteProfile)
	}
}

func TestPipelineClient_Errors(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantStatus int
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
			wantStatus: http.StatusInternalServerError,
		},
		{
			name: "unauthorized",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "no key", http.StatusUnauthorized)
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"predictions":`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := NewPipelineClient(srv.URL, "k").Score(context.Background(), &ScoreRequest{})
			if err == nil {
				t.Fatal("expected error")
			}
			var se *StatusError
			if tt.wantStatus == 0 {
				if errors.As(err, &se) {
					t.Errorf("unexpected status error %v", se)
				}
				return
			}
			if !errors.As(err, &se) || se.StatusCode != tt.wantStatus {
				t.Errorf("err = %v, want status %d", err, tt.wantStatus)
			}
		})
	}
}

func TestPipelineClient_NoBaseURL(t *testing.T) {
	_, err := NewPipelineClient("", "").Score(context.Background(), &ScoreRequest{})
	if !core.IsUnavailable(err) {
		t.Errorf("err = %v, want unavailable", err)
	}
}

func TestPipelineClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	c := NewPipelineClient(srv.URL, "", WithTimeout(20*time.Millisecond))
	_, err := c.Score(context.Background(), &ScoreRequest{})
	if !core.IsUnavailable(err) {
		t.Errorf("err = %v, want unavailable", err)
	}
}

func TestPipelineClient_CircuitBreaker(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewPipelineClient(srv.URL, "", WithCircuitBreaker(BreakerConfig{
		FailureThreshold: 2,
		Window:           2,
		Delay:            time.Minute,
	}))

	for i := 0; i < 2; i++ {
		_, err := c.Score(context.Background(), &ScoreRequest{})
		var se *StatusError
		if !errors.As(err, &se) {
			t.Fatalf("call %d: err = %v, want StatusError", i, err)
		}
	}

	// 熔断后不再请求服务端
	_, err := c.Score(context.Background(), &ScoreRequest{})
	if !errors.Is(err, circuitbreaker.ErrOpen) {
		t.Errorf("err = %v, want circuit open", err)
	}
	if !core.IsUnavailable(err) {
		t.Errorf("open breaker should surface as unavailable")
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("server calls = %d, want 2", got)
	}
}
