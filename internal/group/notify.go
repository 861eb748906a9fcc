// Copyright 2026 The Giftswap Authors
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

package group

import (
	"context"
	"log/slog"
	"sync"

	"github.com/giftswap/giftswap/internal/observability/logger"
)

// Notification is a message to one member.
type Notification struct {
	GroupID      string
	GroupName    string
	MemberID     string
	MemberName   string
	Email        string
	Message      string
	ReceiverName string // set once the group has been drawn
	SentBy       string
}

// Notifier delivers notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the log.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, n Notification) error {
	slog.InfoContext(ctx, "member notified",
		logger.GroupID(n.GroupID),
		logger.MemberID(n.MemberID),
		"has_email", n.Email != "",
		"drawn", n.ReceiverName != "",
	)
	return nil
}

// RecordingNotifier keeps notifications in memory.
type RecordingNotifier struct {
	mu   sync.Mutex
	sent []Notification
}

func (r *RecordingNotifier) Notify(_ context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

// Sent returns a copy of the delivered notifications.
func (r *RecordingNotifier) Sent() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.sent))
	copy(out, r.sent)
	return out
}
