// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package frame turns a client byte stream into protocol lines.
//
// IRC lines end with CR LF and may be at most 512 bytes long, terminator
// included. A single read can carry several lines, part of a line, or stop
// between the CR and the LF; the Decoder keeps the unterminated tail between
// calls so the emitted lines do not depend on how the stream was chunked.
//
//	dec := frame.NewDecoder(frame.DefaultMaxLineLength)
//	for {
//		n, err := conn.Read(buf)
//		for line, lerr := range dec.Feed(buf[:n]) {
//			if lerr != nil {
//				return lerr // frame.ErrLineTooLong, close the connection
//			}
//			handle(line)
//		}
//		if err != nil {
//			return err
//		}
//	}
package frame
