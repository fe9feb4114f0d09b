package wire

import "encoding/binary"

// Response flag words used by the frontend dispatcher (§4.5, §6).
const (
	FlagsSuccess  uint16 = 0x8180 // QR, RD echoed, RA set, RCODE=0
	FlagsNXDomain uint16 = 0x8183 // QR, RD echoed, RA set, RCODE=3
)

// BuildSuccessReply builds a reply datagram carrying a single A answer
// for qname, echoing the client's transaction id and original question
// bytes verbatim.
func BuildSuccessReply(clientID uint16, question []byte, qname string, ip [4]byte) ([]byte, error) {
	owner, err := EncodeName(qname)
	if err != nil {
		return nil, err
	}

	header := make([]byte, headerSize)
	binary.BigEndian.PutUint16(header[0:2], clientID)
	binary.BigEndian.PutUint16(header[2:4], FlagsSuccess)
	binary.BigEndian.PutUint16(header[4:6], 1) // QD
	binary.BigEndian.PutUint16(header[6:8], 1) // AN
	// NS, AR stay zero

	answer := make([]byte, 0, len(owner)+10+4)
	answer = append(answer, owner...)
	typeClassTTL := make([]byte, 8)
	binary.BigEndian.PutUint16(typeClassTTL[0:2], TypeA)
	binary.BigEndian.PutUint16(typeClassTTL[2:4], ClassIN)
	binary.BigEndian.PutUint32(typeClassTTL[4:8], 60)
	answer = append(answer, typeClassTTL...)
	answer = append(answer, 0, 4) // RDLENGTH
	answer = append(answer, ip[:]...)

	out := make([]byte, 0, len(header)+len(question)+len(answer))
	out = append(out, header...)
	out = append(out, question...)
	out = append(out, answer...)
	return out, nil
}

// BuildNXDomainReply builds an NXDOMAIN-shaped reply by copying the
// client's transaction id and reusing bytes 4..end of the original
// datagram as-is - a quirk inherited from the source: the original
// QD/AN/NS/AR counts and question stay in place, which is only correct
// because the client sent exactly one question and no additionals.
func BuildNXDomainReply(original []byte) []byte {
	out := make([]byte, len(original))
	copy(out, original)
	binary.BigEndian.PutUint16(out[0:2], binary.BigEndian.Uint16(original[0:2]))
	binary.BigEndian.PutUint16(out[2:4], FlagsNXDomain)
	return out
}
