package main

import (
	"fmt"
	"log"
	"net/http"
	"net/http/pprof"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	blockDur = prometheus.NewSummary(
		prometheus.SummaryOpts{
			Name: "block_duration",
			Help: "Summary of how long building and committing one block takes.",
		},
	)
	proveDur = prometheus.NewSummary(
		prometheus.SummaryOpts{
			Name: "prove_duration",
			Help: "Summary of how long one prove-and-verify sample takes.",
		},
	)
	opsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accumulator_operations",
			Help: "Incremented for each accumulator operation, labeled by kind.",
		},
		[]string{"op"},
	)
	liveCells = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "live_cells",
			Help: "Number of cells currently live in the accumulator.",
		},
	)
)

func metrics(addr string) {
	prometheus.MustRegister(blockDur)
	prometheus.MustRegister(proveDur)
	prometheus.MustRegister(opsTotal)
	prometheus.MustRegister(liveCells)

	r := mux.NewRouter()
	r.HandleFunc("/", func(rw http.ResponseWriter, req *http.Request) {
		fmt.Fprintln(rw, "Hi, I'm a cella-bench metrics and debugging server!")
	})
	r.Handle("/metrics", promhttp.Handler())

	r.HandleFunc("/debug/pprof/", pprof.Index)
	r.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	r.HandleFunc("/debug/pprof/profile", pprof.Profile)
	r.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	r.HandleFunc("/debug/pprof/trace", pprof.Trace)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}
	log.Printf("Starting metrics server at: %v", addr)
	log.Fatal(srv.ListenAndServe())
}
