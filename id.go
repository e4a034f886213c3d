package flashledger

import "github.com/xraph/flashledger/id"

// ID is the primary identifier type for all flashledger records.
type ID = id.ID

// Prefix identifies the record type encoded in a TypeID.
type Prefix = id.Prefix
