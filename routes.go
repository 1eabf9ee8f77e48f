package main

import (
	"net/http"

	"github.com/gorilla/mux"
)

// setupRoutes configures all HTTP routes for the API
func setupRoutes(router *mux.Router) {
	// Action dispatch: {action, query?, gameId?, slug?, limit?}
	router.HandleFunc("/api/games", dispatchGames).Methods(http.MethodPost)

	// Health check, also served on GET /api/games
	router.HandleFunc("/api/games", getHealthStatus).Methods(http.MethodGet)
	router.HandleFunc("/health", getHealthStatus).Methods(http.MethodGet)

	// Resolve a slug, generated id slug or free text to one game
	router.HandleFunc("/api/games/{slug}", resolveGame).Methods(http.MethodGet)

	// Saved collection
	router.HandleFunc("/collection", listCollection).Methods(http.MethodGet)
	router.HandleFunc("/collection", addToCollection).Methods(http.MethodPost)
	router.HandleFunc("/collection/{id:[0-9]+}", getCollectionEntry).Methods(http.MethodGet)
	router.HandleFunc("/collection/{id:[0-9]+}", removeFromCollection).Methods(http.MethodDelete)

	router.HandleFunc("/stats", getStats).Methods(http.MethodGet)

	// Help endpoint
	router.HandleFunc("/", helpHandler)
}
