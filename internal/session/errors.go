/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package session

import "errors"

var (
	// ErrSessionExists is returned when starting a channel that already has a session.
	ErrSessionExists = errors.New("session already active")

	// ErrNoSession is returned by operations on a channel without a session.
	ErrNoSession = errors.New("no session for channel")

	// ErrNoMatch is returned when a catalog search finds nothing to enqueue.
	ErrNoMatch = errors.New("no matching media")

	// ErrNotRewindable is returned when rewind is requested without a
	// rewindable media item playing.
	ErrNotRewindable = errors.New("nothing rewindable is playing")

	// ErrEmptyAnnouncement rejects blank announcement text.
	ErrEmptyAnnouncement = errors.New("announcement text is empty")

	// ErrTargetUnavailable is returned when an announcement target is missing
	// or already has one.
	ErrTargetUnavailable = errors.New("announcement target not found or already announced")
)
