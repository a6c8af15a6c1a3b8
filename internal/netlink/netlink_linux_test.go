//go:build linux

/*
 * Copyright 2025 SREDiag Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package netlink

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"
)

func message(typ uint16, payload int) []byte {
	length := unix.SizeofNlMsghdr + payload
	b := make([]byte, (length+unix.NLMSG_ALIGNTO-1)&^(unix.NLMSG_ALIGNTO-1))
	binary.NativeEndian.PutUint32(b[0:4], uint32(length))
	binary.NativeEndian.PutUint16(b[4:6], typ)
	return b
}

func TestContainsChange(t *testing.T) {
	assert.True(t, containsChange(message(unix.RTM_NEWLINK, 16)))
	assert.True(t, containsChange(message(unix.RTM_DELADDR, 8)))

	batch := append(message(unix.NLMSG_NOOP, 3), message(unix.RTM_NEWROUTE, 12)...)
	assert.True(t, containsChange(batch))

	assert.False(t, containsChange(message(unix.NLMSG_DONE, 4)))
	assert.False(t, containsChange(nil))
	assert.False(t, containsChange([]byte{1, 2, 3}))

	truncated := message(unix.RTM_NEWLINK, 16)[:unix.SizeofNlMsghdr+2]
	assert.False(t, containsChange(truncated))
}
