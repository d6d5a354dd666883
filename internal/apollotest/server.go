// Copyright 2025 The Rivaas Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package apollotest provides an in-process config service for tests. It
// serves discovery, config fetch and long-poll notification endpoints and
// lets a test publish, delete and break namespaces while a client runs.
package apollotest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"rivaas.dev/remoteconfig/internal/protocol"
)

// DefaultHold is how long a long-poll request is held without changes.
const DefaultHold = 500 * time.Millisecond

type namespaceState struct {
	props          map[string]string
	releaseKey     string
	notificationID int64
}

// Server is a fake config and meta service.
type Server struct {
	srv *httptest.Server

	mu                 sync.Mutex
	appID              string
	cluster            string
	namespaces         map[string]*namespaceState
	services           []protocol.ServiceDTO
	customServices     bool
	discoveryStatus    int
	configStatus       int
	notificationStatus int
	hold               time.Duration
	secret             string
	release            int64
	changed            chan struct{}
	lastConfigQuery    url.Values
	closed             bool

	discoveryRequests    atomic.Int64
	configRequests       atomic.Int64
	notificationRequests atomic.Int64
}

// New starts a server for appID and cluster and stops it when the test
// ends.
func New(tb testing.TB, appID, cluster string) *Server {
	tb.Helper()
	s := &Server{
		appID:      appID,
		cluster:    cluster,
		namespaces: make(map[string]*namespaceState),
		hold:       DefaultHold,
		changed:    make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /services/config", s.handleDiscovery)
	mux.HandleFunc("GET /configs/{appId}/{cluster}/{namespace}", s.handleConfig)
	mux.HandleFunc("GET /notifications/v2", s.handleNotifications)
	s.srv = httptest.NewServer(mux)
	tb.Cleanup(s.Close)
	return s
}

// URL is the base address, usable both as meta server and config service.
func (s *Server) URL() string {
	return s.srv.URL
}

// Close stops the server. Held long polls are released first.
func (s *Server) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		s.wakeLocked()
	}
	s.mu.Unlock()
	s.srv.Close()
}

// Publish installs props as a new release of namespace and wakes long polls.
func (s *Server) Publish(namespace string, props map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.release++
	st, ok := s.namespaces[namespace]
	if !ok {
		st = &namespaceState{}
		s.namespaces[namespace] = st
	}
	st.props = make(map[string]string, len(props))
	for k, v := range props {
		st.props[k] = v
	}
	st.releaseKey = fmt.Sprintf("release-%d", s.release)
	st.notificationID = s.release
	s.wakeLocked()
}

// Delete removes namespace; later fetches get 404.
func (s *Server) Delete(namespace string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.namespaces, namespace)
}

// SetServices replaces the discovery result. nil restores the default of
// the server itself.
func (s *Server) SetServices(services []protocol.ServiceDTO) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services = services
	s.customServices = services != nil
}

// SetDiscoveryStatus forces a status on discovery. Zero restores normal
// behaviour.
func (s *Server) SetDiscoveryStatus(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discoveryStatus = code
}

// SetConfigStatus forces a status on config fetches. Zero restores normal
// behaviour.
func (s *Server) SetConfigStatus(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configStatus = code
}

// SetNotificationStatus forces a status on long polls. Zero restores
// normal behaviour.
func (s *Server) SetNotificationStatus(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notificationStatus = code
}

// SetHold changes how long an unchanged long poll is held.
func (s *Server) SetHold(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hold = d
}

// RequireSignature rejects unsigned or wrongly signed requests with 401.
func (s *Server) RequireSignature(secret string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secret = secret
}

// DiscoveryRequests counts discovery queries.
func (s *Server) DiscoveryRequests() int64 { return s.discoveryRequests.Load() }

// ConfigRequests counts config fetches.
func (s *Server) ConfigRequests() int64 { return s.configRequests.Load() }

// NotificationRequests counts long-poll requests.
func (s *Server) NotificationRequests() int64 { return s.notificationRequests.Load() }

// LastConfigQuery returns the query of the latest config fetch.
func (s *Server) LastConfigQuery() url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastConfigQuery
}

func (s *Server) wakeLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}

func (s *Server) authorized(r *http.Request) bool {
	s.mu.Lock()
	secret := s.secret
	s.mu.Unlock()
	if secret == "" {
		return true
	}
	ts := r.Header.Get(protocol.HeaderTimestamp)
	want := "Apollo " + s.appID + ":" + protocol.Signature(ts, r.URL.RequestURI(), secret)
	return ts != "" && r.Header.Get(protocol.HeaderAuthorization) == want
}

func (s *Server) handleDiscovery(w http.ResponseWriter, _ *http.Request) {
	s.discoveryRequests.Add(1)

	s.mu.Lock()
	status := s.discoveryStatus
	services := s.services
	if !s.customServices {
		services = []protocol.ServiceDTO{{
			AppName:     "apollo-configservice",
			InstanceID:  "fake:" + s.srv.URL,
			HomepageURL: s.srv.URL + "/",
		}}
	}
	s.mu.Unlock()

	if status != 0 {
		w.WriteHeader(status)
		return
	}
	writeJSON(w, services)
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	s.configRequests.Add(1)
	if !s.authorized(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	namespace := r.PathValue("namespace")

	s.mu.Lock()
	s.lastConfigQuery = r.URL.Query()
	status := s.configStatus
	st, ok := s.namespaces[namespace]
	var dto protocol.ConfigDTO
	if ok {
		dto = protocol.ConfigDTO{
			AppID:          r.PathValue("appId"),
			Cluster:        r.PathValue("cluster"),
			NamespaceName:  namespace,
			Configurations: make(map[string]string, len(st.props)),
			ReleaseKey:     st.releaseKey,
		}
		for k, v := range st.props {
			dto.Configurations[k] = v
		}
	}
	s.mu.Unlock()

	switch {
	case status != 0:
		w.WriteHeader(status)
	case !ok:
		w.WriteHeader(http.StatusNotFound)
	case r.URL.Query().Get("releaseKey") == dto.ReleaseKey:
		w.WriteHeader(http.StatusNotModified)
	default:
		writeJSON(w, dto)
	}
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	s.notificationRequests.Add(1)
	if !s.authorized(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var requested []protocol.NotificationDTO
	if err := json.Unmarshal([]byte(r.URL.Query().Get("notifications")), &requested); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	hold := s.hold
	s.mu.Unlock()
	deadline := time.NewTimer(hold)
	defer deadline.Stop()

	for {
		s.mu.Lock()
		status := s.notificationStatus
		updates := s.pendingLocked(requested)
		changed := s.changed
		closed := s.closed
		s.mu.Unlock()

		switch {
		case closed:
			w.WriteHeader(http.StatusNotModified)
			return
		case status != 0:
			w.WriteHeader(status)
			return
		case len(updates) > 0:
			writeJSON(w, updates)
			return
		}

		select {
		case <-changed:
		case <-deadline.C:
			w.WriteHeader(http.StatusNotModified)
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) pendingLocked(requested []protocol.NotificationDTO) []protocol.NotificationDTO {
	var updates []protocol.NotificationDTO
	for _, n := range requested {
		st, ok := s.namespaces[n.NamespaceName]
		if !ok || st.notificationID <= n.NotificationID {
			continue
		}
		messages := protocol.NewMessages()
		messages.Put(protocol.MessageKey(s.appID, s.cluster, n.NamespaceName), st.notificationID)
		updates = append(updates, protocol.NotificationDTO{
			NamespaceName:  n.NamespaceName,
			NotificationID: st.notificationID,
			Messages:       messages,
		})
	}
	return updates
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
