// Package certify validates third-party XMLTV grabber programs against the
// documented grabber capability contract.
package certify

// Version is the certify release version.
const Version = "0.3.0"
