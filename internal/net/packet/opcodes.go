package packet

// Peer → host.
const (
	C_OPCODE_HELLO            byte = 0x01
	C_OPCODE_REQUEST_ALLOCATE byte = 0x10
	C_OPCODE_REQUEST_RELEASE  byte = 0x11
)

// Host → peers.
const (
	S_OPCODE_WELCOME    byte = 0x02
	S_OPCODE_SPAWN      byte = 0x20
	S_OPCODE_ACTIVATE   byte = 0x21
	S_OPCODE_DEACTIVATE byte = 0x22
	S_OPCODE_REMOVE     byte = 0x23
)
