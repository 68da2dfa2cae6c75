/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http"
	"net/http/pprof"

	"github.com/julienschmidt/httprouter"
)

var profiles = []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"}

type roomStats struct {
	Variant string `json:"variant"`
	Rooms   int    `json:"rooms"`
}

// registerProfileHandlers exposes pprof and a live room count under /pprof.
func registerProfileHandlers(cfg *Config, mux *httprouter.Router, arcades []*Arcade) {
	for _, name := range profiles {
		mux.Handler("GET", cfg.prefix+"/pprof/"+name, pprof.Handler(name))
	}
	mux.HandlerFunc("GET", cfg.prefix+"/pprof/cmdline", pprof.Cmdline)
	mux.HandlerFunc("GET", cfg.prefix+"/pprof/profile", pprof.Profile)
	mux.HandlerFunc("GET", cfg.prefix+"/pprof/symbol", pprof.Symbol)
	mux.HandlerFunc("GET", cfg.prefix+"/pprof/trace", pprof.Trace)

	mux.GET(cfg.prefix+"/pprof/rooms", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		stats := make([]roomStats, 0, len(arcades))
		for _, a := range arcades {
			stats = append(stats, roomStats{Variant: a.variant, Rooms: a.rooms.Len()})
		}

		securityHeaders(cfg, w)
		_ = writeJSON(w, http.StatusOK, stats)
	})
}
