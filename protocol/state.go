// Copyright 2023 Dolthub, Inc.
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

// Package protocol implements the connection-level state machine (§3, §4.5,
// §4.6, §5): startup and authentication, the simple and extended query
// pipelines, prepared-statement/portal lifecycle, and transaction status
// tracking, all built on the message and transport layers.
package protocol

// State is one node of the connection's lifecycle state machine.
type State int

const (
	StateDisconnected State = iota
	StateStartup
	StateAuthenticating
	StateReadyIdle
	StateSimpleQuery
	StateExtendedQuery
	StateCopyIn
	StateCopyOut
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateStartup:
		return "Startup"
	case StateAuthenticating:
		return "Authenticating"
	case StateReadyIdle:
		return "ReadyIdle"
	case StateSimpleQuery:
		return "SimpleQuery"
	case StateExtendedQuery:
		return "ExtendedQuery"
	case StateCopyIn:
		return "CopyIn"
	case StateCopyOut:
		return "CopyOut"
	case StateClosing:
		return "Closing"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// TxStatus mirrors message.TransactionStatus, tracked from every
// ReadyForQuery the server sends.
type TxStatus byte

const (
	TxIdle          TxStatus = 'I'
	TxInBlock       TxStatus = 'T'
	TxInFailedBlock TxStatus = 'E'
)
