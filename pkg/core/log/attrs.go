// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package log

import (
	"log/slog"
)

// Valuer returns an Attr for the given slog.LogValuer value.
func Valuer(key string, value slog.LogValuer) slog.Attr {
	return slog.Any(key, value)
}

// Err returns an Attr for the given error value.
// The error value is resolved as a string by its Error() method.
// If error value is nil, the constant "no-error" value will be used.
func Err(key string, value error) slog.Attr {
	if value == nil {
		return slog.String(key, "no-error")
	}
	return slog.String(key, value.Error())
}

// Tag returns an Attr carrying a stable, BUG-class log tag, per
// spec.md §7 ("log messages identify the failing stage and BUG-class
// errors by a stable string tag"). Callers pass the same tag string
// regardless of locale or wrapped error detail, so it can be grepped
// or alerted on reliably.
func Tag(value string) slog.Attr {
	return slog.String("tag", value)
}

// Session returns an Attr carrying a session correlation id, letting
// every log line emitted during one authentication attempt be grepped
// or joined together.
func Session(id string) slog.Attr {
	return slog.String("session", id)
}
