package httpserver

import "net/http"

// Middleware wraps a handler.
type Middleware func(http.Handler) http.Handler

// Routes groups handlers by the guard they sit behind.
type Routes struct {
	// Bot-transport endpoints (API key).
	CheckIn     http.HandlerFunc
	CheckOut    http.HandlerFunc
	Register    http.HandlerFunc
	Preferences http.HandlerFunc
	IssueToken  http.HandlerFunc

	// Authenticated user endpoints (JWT).
	TodayStatus http.HandlerFunc
	History     http.HandlerFunc

	// Admin endpoints (JWT + admin role).
	DailyReport http.HandlerFunc
	Stats       http.HandlerFunc
	Present     http.HandlerFunc
	ExportCSV   http.HandlerFunc
	AdminLogs   http.HandlerFunc
	Instances   http.HandlerFunc
	Feed        http.HandlerFunc

	// Unguarded probes.
	Health http.HandlerFunc
	Ready  http.HandlerFunc
}

// NewRouter registers endpoints behind their guards.
func NewRouter(routes Routes, botKey, auth, admin Middleware) http.Handler {
	mux := http.NewServeMux()

	register := func(pattern, verb string, handler http.HandlerFunc, guards ...Middleware) {
		if handler == nil {
			return
		}
		var h http.Handler = method(verb, handler)
		for i := len(guards) - 1; i >= 0; i-- {
			h = guards[i](h)
		}
		mux.Handle(pattern, h)
	}

	register("/attendance/check-in", http.MethodPost, routes.CheckIn, botKey)
	register("/attendance/check-out", http.MethodPost, routes.CheckOut, botKey)
	register("/users/register", http.MethodPost, routes.Register, botKey)
	register("/users/preferences", http.MethodPut, routes.Preferences, botKey)
	register("/auth/token", http.MethodPost, routes.IssueToken, botKey)

	register("/attendance/today", http.MethodGet, routes.TodayStatus, auth)
	register("/attendance/history", http.MethodGet, routes.History, auth)

	register("/admin/report", http.MethodGet, routes.DailyReport, auth, admin)
	register("/admin/stats", http.MethodGet, routes.Stats, auth, admin)
	register("/admin/present", http.MethodGet, routes.Present, auth, admin)
	register("/admin/export.csv", http.MethodGet, routes.ExportCSV, auth, admin)
	register("/admin/logs", http.MethodGet, routes.AdminLogs, auth, admin)
	register("/admin/instances", http.MethodGet, routes.Instances, auth, admin)
	register("/ws/feed", http.MethodGet, routes.Feed, auth, admin)

	register("/health", http.MethodGet, routes.Health)
	register("/ready", http.MethodGet, routes.Ready)

	return mux
}

func method(expected string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != expected {
			w.Header().Set("Allow", expected)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handler(w, r)
	}
}
