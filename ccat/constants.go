package ccat

// Public limits, fixed by the wire format.
const (
	// MaxWindowPackets is the largest number of originals the encoder window
	// can hold. 192 columns leave 64 recovery rows in GF(256) and enable up
	// to 33% FEC; it is also a multiple of 64, which makes the most of the
	// column bitfields.
	MaxWindowPackets = 192

	// MaxPacketBytes is the largest original packet the codec accepts.
	MaxPacketBytes = 65536

	// MinWindowMsec is the smallest supported window duration.
	MinWindowMsec = 10

	// MaxWindowMsec is the largest supported window duration.
	MaxWindowMsec = 2000 * 1000 * 1000
)

const (
	// matrixColumnCount is the number of original columns in the matrix.
	matrixColumnCount = MaxWindowPackets

	// matrixRowCount is the number of recovery rows in the matrix.
	matrixRowCount = 256 - matrixColumnCount

	// maxRecoveryColumns bounds the span of a single recovery attempt.
	maxRecoveryColumns = 128

	// maxRecoveryRows bounds the pending recovery set on the decoder.
	maxRecoveryRows = maxRecoveryColumns + 32

	// decoderWindowSize is the slot ring size, twice the encoder window so
	// recoveries referencing a lagging span still land on live slots.
	decoderWindowSize = 2 * matrixColumnCount

	// encodeOverhead is the per-column length prefix mixed into recovery
	// payloads.
	encodeOverhead = 2
)
