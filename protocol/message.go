// Copyright 2025 Outreach Corporation. All Rights Reserved.

// Description:

// Package protocol implements an incremental RESP2/RESP3 codec: Decode turns a
// byte buffer into at most one Message plus the number of bytes consumed, and
// Encode renders a Message back into its exact wire form.
package protocol

import "github.com/awinterman/anarchoresp/protocol/message"

// Message is a composite type that represents a message in the protocol
// the Kind says which fields should be respected.
type Message = message.Message
