package logging

import (
	"time"

	"go.uber.org/zap"
)

// MintID is the id of the mint being processed.
func MintID(v string) zap.Field {
	return zap.String("mint_id", v)
}

// IssuerDID is the did:key of the signing issuer.
func IssuerDID(v string) zap.Field {
	return zap.String("issuer_did", v)
}

// Reason is an ingest rejection reason.
func Reason(v string) zap.Field {
	return zap.String("reason", v)
}

// ErrorCode is the code of a typed mint error.
func ErrorCode(v string) zap.Field {
	return zap.String("error_code", v)
}

// Form is the input encoding (carrier, compact, long).
func Form(v string) zap.Field {
	return zap.String("form", v)
}

// Op names the operation.
func Op(v string) zap.Field {
	return zap.String("op", v)
}

// Component names the subsystem.
func Component(v string) zap.Field {
	return zap.String("component", v)
}

// Units is a unit count.
func Units(v int) zap.Field {
	return zap.Int("units", v)
}

// Duration is an elapsed time.
func Duration(v time.Duration) zap.Field {
	return zap.Duration("duration", v)
}

// Err wraps an error.
func Err(err error) zap.Field {
	return zap.Error(err)
}
