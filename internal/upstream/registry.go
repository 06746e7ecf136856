// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package upstream

import (
	"sync"

	"github.com/tomtom215/historian/internal/models"
)

// Registry caches one client per server so circuit breaker and limiter
// state survive across import jobs. A client is rebuilt when the server's
// URL or token changes.
type Registry struct {
	opts Options

	mu      sync.Mutex
	clients map[string]cachedClient
}

type cachedClient struct {
	url    string
	token  string
	client any
}

// NewRegistry creates an empty registry.
func NewRegistry(opts Options) *Registry {
	return &Registry{opts: opts, clients: make(map[string]cachedClient)}
}

// Plex returns the cached Plex client for server.
func (r *Registry) Plex(server *models.MediaServer) *PlexClient {
	return lookup(r, server, func() *PlexClient {
		return NewPlexClient(server.ID, server.URL, server.Token, r.opts)
	})
}

// Jellyfin returns the cached Jellyfin or Emby client for server.
func (r *Registry) Jellyfin(server *models.MediaServer) *JellyfinClient {
	return lookup(r, server, func() *JellyfinClient {
		return NewJellyfinClient(server.ServerType, server.ID, server.URL, server.Token, r.opts)
	})
}

// AudiobookShelf returns the cached AudiobookShelf client for server.
func (r *Registry) AudiobookShelf(server *models.MediaServer) *AudiobookShelfClient {
	return lookup(r, server, func() *AudiobookShelfClient {
		return NewAudiobookShelfClient(server.ID, server.URL, server.Token, r.opts)
	})
}

func lookup[T any](r *Registry, server *models.MediaServer, build func() T) T {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := server.ServerType + "/" + server.ID
	if cached, ok := r.clients[key]; ok && cached.url == server.URL && cached.token == server.Token {
		if client, ok := cached.client.(T); ok {
			return client
		}
	}

	client := build()
	r.clients[key] = cachedClient{url: server.URL, token: server.Token, client: client}
	return client
}
