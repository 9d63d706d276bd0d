// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetRetriesTransientStatus(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := New("kapowarr-test")
	resp, err := c.Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	body, err := ReadAll(resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", body)
	assert.Equal(t, 3, hits)
}

type fakeSolver struct{ calls int }

func (f *fakeSolver) Solve(ctx context.Context, url string) (ChallengeSolution, error) {
	f.calls++
	return ChallengeSolution{UserAgent: "solved-agent"}, nil
}

func TestGetSolvesChallenge(t *testing.T) {
	solver := &fakeSolver{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "solved-agent" {
			w.Write([]byte("past the gate"))
			return
		}
		w.Header().Set("cf-mitigated", "challenge")
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := New("kapowarr-test")
	c.Solver = solver
	resp, err := c.Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	body, err := ReadAll(resp)
	require.NoError(t, err)
	assert.Equal(t, "past the gate", body)
	assert.Equal(t, 1, solver.calls)
}
