// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package chatui is the interactive terminal client: a Bubble Tea
// program with a scrollback of deliveries above a single input line.
//
// Input lines are sent to the relay as typed, so "bob: hi" routes a
// message and "!check" fetches held messages. "exit" (or ctrl+c) says
// goodbye and quits. Deliveries arrive through [Listen], which parses
// relay lines on a background goroutine and feeds them to the program.
package chatui
