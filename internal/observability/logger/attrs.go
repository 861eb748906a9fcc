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

package logger

import (
	"log/slog"
	"time"
)

// HTTP request attributes.

func RequestID(id string) slog.Attr { return slog.String("request_id", id) }

func Method(method string) slog.Attr { return slog.String("method", method) }

func Path(path string) slog.Attr { return slog.String("path", path) }

func RemoteAddr(addr string) slog.Attr { return slog.String("remote_addr", addr) }

func UserAgent(ua string) slog.Attr { return slog.String("user_agent", ua) }

func StatusCode(code int) slog.Attr { return slog.Int("status_code", code) }

// Duration records d in milliseconds.
func Duration(d time.Duration) slog.Attr {
	return slog.Int64("duration_ms", d.Milliseconds())
}

// Accounts and permissions.

func UserID(id string) slog.Attr { return slog.String("user_id", id) }

func Email(email string) slog.Attr { return slog.String("email", email) }

func PermissionCode(code string) slog.Attr { return slog.String("permission_code", code) }

func ResourceID(id string) slog.Attr { return slog.String("resource_id", id) }

// Allowed records the outcome of an authorization check.
func Allowed(ok bool) slog.Attr { return slog.Bool("allowed", ok) }

// Gift exchange entities.

func GroupID(id string) slog.Attr { return slog.String("group_id", id) }

func MemberID(id string) slog.Attr { return slog.String("member_id", id) }

// Storage.

func RowsAffected(rows int64) slog.Attr { return slog.Int64("rows_affected", rows) }

func CacheKey(key string) slog.Attr { return slog.String("cache_key", key) }

// Error renders err, or an empty string for nil.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}

func Component(name string) slog.Attr { return slog.String("component", name) }

func Operation(op string) slog.Attr { return slog.String("operation", op) }

// String creates a generic string attribute
func String(key, value string) slog.Attr { return slog.String(key, value) }
