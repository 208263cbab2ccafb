package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sydlexius/milkcrate/internal/catalog"
	"github.com/sydlexius/milkcrate/internal/stats"
)

func TestHandleStatsOverview(t *testing.T) {
	r, _ := testRouter(t)
	seedAlbum(t, r, "item-1", "Neil Young", "Harvest")
	seedRecord(t, r, 1001, "Neil Young", "Harvest")
	err := r.digital.InsertPlay(context.Background(), &catalog.PlayEvent{
		AlbumArtist: "Neil Young", Album: "Harvest", Title: "Heart of Gold",
	})
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/stats/overview", nil)
	w := httptest.NewRecorder()
	r.handleStatsOverview(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	var o stats.Overview
	decodeBody(t, w, &o)
	if o.DigitalAlbums != 1 || o.PhysicalRecords != 1 || o.PlayEvents != 1 {
		t.Errorf("overview = %+v, want one of each", o)
	}
	if o.AlbumsInBoth != 1 {
		t.Errorf("albums in both = %d, want 1", o.AlbumsInBoth)
	}
}

func TestHandleStatsPlayCounts(t *testing.T) {
	r, _ := testRouter(t)
	ctx := context.Background()
	plays := []catalog.PlayEvent{
		{AlbumArtist: "Neil Young", Album: "Harvest", Title: "Heart of Gold"},
		{AlbumArtist: "Neil Young", Album: "Harvest", Title: "Old Man"},
		{AlbumArtist: "Can", Album: "Tago Mago", Title: "Halleluhwah"},
	}
	for i := range plays {
		if err := r.digital.InsertPlay(ctx, &plays[i]); err != nil {
			t.Fatal(err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/stats/play-counts?limit=5", nil)
	w := httptest.NewRecorder()
	r.handleStatsPlayCounts(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	var body struct {
		PlayCounts []stats.PlayCount `json:"play_counts"`
		Total      int               `json:"total"`
	}
	decodeBody(t, w, &body)
	if body.Total != 2 {
		t.Fatalf("total = %d, want 2", body.Total)
	}
	if body.PlayCounts[0].Album != "Harvest" || body.PlayCounts[0].Plays != 2 {
		t.Errorf("top album = %+v, want Harvest with 2 plays", body.PlayCounts[0])
	}
}

func TestHandleStatsLiveMatches(t *testing.T) {
	r, _ := testRouter(t)
	seedAlbum(t, r, "item-1", "Neil Young", "1974 06/26 Providence Civic Center")
	rebuildMatches(t, r)

	req := httptest.NewRequest(http.MethodGet, "/api/stats/live-matches", nil)
	w := httptest.NewRecorder()
	r.handleStatsLiveMatches(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	var body struct {
		Matches []catalog.LiveShowMatch `json:"matches"`
		Total   int                     `json:"total"`
	}
	decodeBody(t, w, &body)
	if body.Total != 1 {
		t.Errorf("total = %d, want 1", body.Total)
	}
}
