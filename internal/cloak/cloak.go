// Package cloak implements yaIRCd's deterministic hostname and IPv4
// pseudonymisation: a two-stage SHA1-then-MD5 digest, folded to a
// 32-bit word and rendered as hex, so that clients can still hostmask
// match each other without learning one another's real address.
package cloak

import (
	"crypto/md5"
	"crypto/sha1"
	"fmt"
)

// Keys holds the three salts yaIRCd mixes into every cloak digest, plus
// the prefix prepended to cloaked hostnames. All three salts must be
// 5-100 alphanumeric characters; Keys is otherwise a plain value type,
// read once from configuration and never mutated.
type Keys struct {
	NetPrefix string
	K1        string
	K2        string
	K3        string
}

// digest computes MD5(SHA1(saltA ":" text ":" saltB) || saltC), the
// two-stage hash every cloak operation builds on.
func digest(saltA, text, saltB, saltC string) [md5.Size]byte {
	sum := sha1.Sum([]byte(saltA + ":" + text + ":" + saltB))
	h := md5.New()
	h.Write(sum[:])
	h.Write([]byte(saltC))
	var out [md5.Size]byte
	copy(out[:], h.Sum(nil))
	return out
}

// downsample folds a 16-byte digest into a 32-bit word: the digest is
// split into four 4-byte groups, each XOR-packed into one byte, and
// those four bytes are shifted into an accumulator so the first group
// lands in the most significant byte.
func downsample(d [md5.Size]byte) uint32 {
	var acc uint32
	for group := 0; group < 4; group++ {
		var packed byte
		for i := 0; i < 4; i++ {
			packed ^= d[group*4+i]
		}
		acc = (acc << 8) | uint32(packed)
	}
	return acc
}

// Hostname cloaks a resolved hostname, preserving the domain suffix from
// the first '.' that is followed by a letter so hostmask bans against a
// provider's domain keep working.
func (k Keys) Hostname(host string) string {
	d := digest(k.K1, host, k.K2, k.K3)
	return fmt.Sprintf("%s-%X%s", k.NetPrefix, downsample(d), suffix(host))
}

func suffix(host string) string {
	for i := 0; i < len(host)-1; i++ {
		if host[i] == '.' && isAlpha(host[i+1]) {
			return host[i:]
		}
	}
	return ""
}

func isAlpha(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// IPv4 cloaks a dotted-quad address as three independently-salted
// octet-group digests, each losing one more trailing octet, so that
// A.B.C.* and A.B.* hostmasks remain meaningful after cloaking.
func (k Keys) IPv4(dotted string) string {
	ab, abc := splitOctets(dotted)

	alpha := downsample(digest(k.K2, dotted, k.K3, k.K1))
	beta := downsample(digest(k.K3, abc, k.K1, k.K2))
	gamma := downsample(digest(k.K1, ab, k.K2, k.K3))

	return fmt.Sprintf("%X.%X.%X.IP", alpha, beta, gamma)
}

// splitOctets returns the first-two-octet and first-three-octet
// prefixes of a dotted-quad address ("A.B", "A.B.C").
func splitOctets(dotted string) (ab, abc string) {
	dots := make([]int, 0, 3)
	for i := 0; i < len(dotted); i++ {
		if dotted[i] == '.' {
			dots = append(dots, i)
			if len(dots) == 3 {
				break
			}
		}
	}
	if len(dots) < 3 {
		return dotted, dotted
	}
	return dotted[:dots[1]], dotted[:dots[2]]
}
