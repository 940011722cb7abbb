package models

// ProtocolVersion is stamped on every audit event so trail consumers can
// interpret records written by older daemons.
const ProtocolVersion = "1.0"
