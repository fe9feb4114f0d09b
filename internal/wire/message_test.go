package wire

import (
	"encoding/binary"
	"strings"
	"testing"
)

func TestEncodeDecodeNameRoundTrip(t *testing.T) {
	names := []string{
		"example.com.",
		"www.example.com.",
		"a.gtld-servers.net.",
		strings.Repeat("a", 63) + ".com.",
	}

	for _, name := range names {
		encoded, err := EncodeName(name)
		if err != nil {
			t.Fatalf("EncodeName(%q) error: %v", name, err)
		}

		padded := append(append([]byte{}, encoded...), 0xFF, 0xFF, 0xFF)
		got, next, err := DecodeName(padded, 0)
		if err != nil {
			t.Fatalf("DecodeName(%q) error: %v", name, err)
		}
		if got != name {
			t.Errorf("DecodeName round-trip = %q, want %q", got, name)
		}
		if next != len(encoded) {
			t.Errorf("next offset = %d, want %d", next, len(encoded))
		}
	}
}

func TestEncodeNameLabelTooLong(t *testing.T) {
	_, err := EncodeName(strings.Repeat("a", 64) + ".com.")
	if err != ErrLabelTooLong {
		t.Fatalf("err = %v, want ErrLabelTooLong", err)
	}
}

func TestEncodeNameTooLong(t *testing.T) {
	label := strings.Repeat("a", 63)
	var labels []string
	for i := 0; i < 5; i++ {
		labels = append(labels, label)
	}
	_, err := EncodeName(strings.Join(labels, ".") + ".")
	if err != ErrNameTooLong {
		t.Fatalf("err = %v, want ErrNameTooLong", err)
	}
}

func TestDecodeNameRefusesForwardPointer(t *testing.T) {
	// Pointer at offset 0 pointing to offset 2 (>= its own offset).
	buf := []byte{0xC0, 0x02, 0x00}
	_, _, err := DecodeName(buf, 0)
	if err != ErrBadPointer {
		t.Fatalf("err = %v, want ErrBadPointer", err)
	}
}

func TestDecodeNameRefusesSelfPointer(t *testing.T) {
	buf := []byte{0xC0, 0x00}
	_, _, err := DecodeName(buf, 0)
	if err != ErrBadPointer {
		t.Fatalf("err = %v, want ErrBadPointer", err)
	}
}

func TestDecodeNameTruncated(t *testing.T) {
	buf := []byte{0x03, 'w', 'w'}
	_, _, err := DecodeName(buf, 0)
	if err != ErrTruncated {
		t.Fatalf("err = %v, want ErrTruncated", err)
	}
}

// buildMessage assembles a minimal, well-formed DNS message with one
// question and the given answer/authority/additional records already
// in wire format, for use by the parseResponse tests below.
func buildMessage(t *testing.T, id uint16, flags uint16, qname string, answers, authorities, additionals [][]byte) []byte {
	t.Helper()

	question, err := EncodeQuestion(Question{Name: qname, Type: TypeA, Class: ClassIN})
	if err != nil {
		t.Fatalf("EncodeQuestion: %v", err)
	}

	header := make([]byte, headerSize)
	binary.BigEndian.PutUint16(header[0:2], id)
	binary.BigEndian.PutUint16(header[2:4], flags)
	binary.BigEndian.PutUint16(header[4:6], 1)
	binary.BigEndian.PutUint16(header[6:8], uint16(len(answers)))
	binary.BigEndian.PutUint16(header[8:10], uint16(len(authorities)))
	binary.BigEndian.PutUint16(header[10:12], uint16(len(additionals)))

	buf := append([]byte{}, header...)
	buf = append(buf, question...)
	for _, rr := range answers {
		buf = append(buf, rr...)
	}
	for _, rr := range authorities {
		buf = append(buf, rr...)
	}
	for _, rr := range additionals {
		buf = append(buf, rr...)
	}
	return buf
}

func buildARecord(t *testing.T, name string, ip [4]byte) []byte {
	t.Helper()
	owner, err := EncodeName(name)
	if err != nil {
		t.Fatalf("EncodeName: %v", err)
	}
	rr := append([]byte{}, owner...)
	typeClassTTL := make([]byte, 8)
	binary.BigEndian.PutUint16(typeClassTTL[0:2], TypeA)
	binary.BigEndian.PutUint16(typeClassTTL[2:4], ClassIN)
	binary.BigEndian.PutUint32(typeClassTTL[4:8], 300)
	rr = append(rr, typeClassTTL...)
	rr = append(rr, 0, 4)
	rr = append(rr, ip[:]...)
	return rr
}

func TestParseResponseAnswer(t *testing.T) {
	answer := buildARecord(t, "example.com.", [4]byte{93, 184, 216, 34})
	msg := buildMessage(t, 0x1234, FlagsSuccess, "example.com.", [][]byte{answer}, nil, nil)

	answers, authorities, additionals := ParseResponse(msg)
	if len(answers) != 1 {
		t.Fatalf("got %d answers, want 1", len(answers))
	}
	if answers[0].Kind != KindA || answers[0].A != "93.184.216.34" {
		t.Errorf("answer = %+v", answers[0])
	}
	if len(authorities) != 0 || len(additionals) != 0 {
		t.Errorf("expected empty authority/additional sections")
	}
}

func TestParseResponseTrailingGarbageIsRejected(t *testing.T) {
	msg := buildMessage(t, 1, FlagsSuccess, "example.com.", nil, nil, nil)
	msg = append(msg, 0xDE, 0xAD) // trailing garbage not accounted for by counts

	answers, authorities, additionals := ParseResponse(msg)
	if answers != nil || authorities != nil || additionals != nil {
		t.Fatalf("expected all-empty result on structural mismatch")
	}
}

func TestParseResponseNSViaCompressionPointerToQuestion(t *testing.T) {
	// NS rdata is a two-octet pointer back to the question's qname at
	// offset 12, exercising full-message-context decompression.
	qname := "com."
	question, err := EncodeQuestion(Question{Name: qname, Type: TypeA, Class: ClassIN})
	if err != nil {
		t.Fatalf("EncodeQuestion: %v", err)
	}

	owner, err := EncodeName(qname)
	if err != nil {
		t.Fatalf("EncodeName: %v", err)
	}

	rr := append([]byte{}, owner...)
	typeClassTTL := make([]byte, 8)
	binary.BigEndian.PutUint16(typeClassTTL[0:2], TypeNS)
	binary.BigEndian.PutUint16(typeClassTTL[2:4], ClassIN)
	binary.BigEndian.PutUint32(typeClassTTL[4:8], 3600)
	rr = append(rr, typeClassTTL...)
	rr = append(rr, 0, 2)             // RDLENGTH = 2 (a pointer)
	rr = append(rr, 0xC0, headerSize) // pointer to offset 12 (qname)

	header := make([]byte, headerSize)
	binary.BigEndian.PutUint16(header[4:6], 1)
	binary.BigEndian.PutUint16(header[8:10], 1)

	msg := append([]byte{}, header...)
	msg = append(msg, question...)
	msg = append(msg, rr...)

	_, authorities, _ := ParseResponse(msg)
	if len(authorities) != 1 {
		t.Fatalf("got %d authority records, want 1", len(authorities))
	}
	if authorities[0].Kind != KindNS || authorities[0].NS != qname {
		t.Errorf("authority = %+v, want NS %q", authorities[0], qname)
	}
}

func TestBuildQueryShape(t *testing.T) {
	query, id, err := BuildQuery("example.com.")
	if err != nil {
		t.Fatalf("BuildQuery error: %v", err)
	}
	if got := binary.BigEndian.Uint16(query[0:2]); got != id {
		t.Errorf("encoded id = %x, want %x", got, id)
	}
	if got := binary.BigEndian.Uint16(query[2:4]); got != 0x0100 {
		t.Errorf("flags = %x, want 0x0100", got)
	}
	if got := binary.BigEndian.Uint16(query[4:6]); got != 1 {
		t.Errorf("qdcount = %d, want 1", got)
	}
}
