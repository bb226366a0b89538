package crypto

// X25519Size is the length in bytes of a scalar, a u-coordinate, and a
// shared secret (RFC 7748 §5).
const X25519Size = 32

// fieldElement is a radix-2^25.5 representation of an element of GF(2^255-19)
// in 10 signed limbs, matching the curve25519-donna reference layout
// required to keep the ladder's intermediate values within 64-bit
// accumulators.
type fieldElement [10]int64

func feFromBytes(b [32]byte) fieldElement {
	load4 := func(in []byte) int64 {
		return int64(in[0]) | int64(in[1])<<8 | int64(in[2])<<16 | int64(in[3])<<24
	}
	var h fieldElement
	h[0] = load4(b[0:]) & 0x3ffffff
	h[1] = (load4(b[3:]) >> 2) & 0x1ffffff
	h[2] = (load4(b[6:]) >> 3) & 0x3ffffff
	h[3] = (load4(b[9:]) >> 5) & 0x1ffffff
	h[4] = (load4(b[12:]) >> 6) & 0x3ffffff
	h[5] = load4(b[16:]) & 0x1ffffff
	h[6] = (load4(b[19:]) >> 1) & 0x3ffffff
	h[7] = (load4(b[22:]) >> 3) & 0x1ffffff
	h[8] = (load4(b[25:]) >> 4) & 0x3ffffff
	h[9] = (load4(b[28:]) >> 6) & 0x1ffffff
	return h
}

func feAdd(a, b fieldElement) fieldElement {
	var h fieldElement
	for i := range h {
		h[i] = a[i] + b[i]
	}
	return h
}

func feSub(a, b fieldElement) fieldElement {
	var h fieldElement
	for i := range h {
		h[i] = a[i] - b[i]
	}
	return h
}

// feMul multiplies two field elements using schoolbook multiplication with
// the standard 19/2 reduction for the 2^255-19 limbs, then carries.
func feMul(f, g fieldElement) fieldElement {
	f1_2 := 2 * f[1]
	f3_2 := 2 * f[3]
	f5_2 := 2 * f[5]
	f7_2 := 2 * f[7]
	f9_2 := 2 * f[9]

	g1_19 := 19 * g[1]
	g2_19 := 19 * g[2]
	g3_19 := 19 * g[3]
	g4_19 := 19 * g[4]
	g5_19 := 19 * g[5]
	g6_19 := 19 * g[6]
	g7_19 := 19 * g[7]
	g8_19 := 19 * g[8]
	g9_19 := 19 * g[9]

	h0 := f[0]*g[0] + f1_2*g9_19 + f[2]*g8_19 + f3_2*g7_19 + f[4]*g6_19 + f5_2*g5_19 + f[6]*g4_19 + f7_2*g3_19 + f[8]*g2_19 + f9_2*g1_19
	h1 := f[0]*g[1] + f[1]*g[0] + f[2]*g9_19 + f[3]*g8_19 + f[4]*g7_19 + f[5]*g6_19 + f[6]*g5_19 + f[7]*g4_19 + f[8]*g3_19 + f[9]*g2_19
	h2 := f[0]*g[2] + f1_2*g[1] + f[2]*g[0] + f3_2*g9_19 + f[4]*g8_19 + f5_2*g7_19 + f[6]*g6_19 + f7_2*g5_19 + f[8]*g4_19 + f9_2*g3_19
	h3 := f[0]*g[3] + f[1]*g[2] + f[2]*g[1] + f[3]*g[0] + f[4]*g9_19 + f[5]*g8_19 + f[6]*g7_19 + f[7]*g6_19 + f[8]*g5_19 + f[9]*g4_19
	h4 := f[0]*g[4] + f1_2*g[3] + f[2]*g[2] + f3_2*g[1] + f[4]*g[0] + f5_2*g9_19 + f[6]*g8_19 + f7_2*g7_19 + f[8]*g6_19 + f9_2*g5_19
	h5 := f[0]*g[5] + f[1]*g[4] + f[2]*g[3] + f[3]*g[2] + f[4]*g[1] + f[5]*g[0] + f[6]*g9_19 + f[7]*g8_19 + f[8]*g7_19 + f[9]*g6_19
	h6 := f[0]*g[6] + f1_2*g[5] + f[2]*g[4] + f3_2*g[3] + f[4]*g[2] + f5_2*g[1] + f[6]*g[0] + f7_2*g9_19 + f[8]*g8_19 + f9_2*g7_19
	h7 := f[0]*g[7] + f[1]*g[6] + f[2]*g[5] + f[3]*g[4] + f[4]*g[3] + f[5]*g[2] + f[6]*g[1] + f[7]*g[0] + f[8]*g9_19 + f[9]*g8_19
	h8 := f[0]*g[8] + f1_2*g[7] + f[2]*g[6] + f3_2*g[5] + f[4]*g[4] + f5_2*g[3] + f[6]*g[2] + f7_2*g[1] + f[8]*g[0] + f9_2*g9_19
	h9 := f[0]*g[9] + f[1]*g[8] + f[2]*g[7] + f[3]*g[6] + f[4]*g[5] + f[5]*g[4] + f[6]*g[3] + f[7]*g[2] + f[8]*g[1] + f[9]*g[0]

	return feCarry([10]int64{h0, h1, h2, h3, h4, h5, h6, h7, h8, h9})
}

// feCarry propagates carries through the alternating 26/25-bit limb sizes.
func feCarry(h [10]int64) fieldElement {
	var c [10]int64
	c[0] = (h[0] + (1 << 25)) >> 26
	h[1] += c[0]
	h[0] -= c[0] << 26
	c[4] = (h[4] + (1 << 25)) >> 26
	h[5] += c[4]
	h[4] -= c[4] << 26
	c[1] = (h[1] + (1 << 24)) >> 25
	h[2] += c[1]
	h[1] -= c[1] << 25
	c[5] = (h[5] + (1 << 24)) >> 25
	h[6] += c[5]
	h[5] -= c[5] << 25
	c[2] = (h[2] + (1 << 25)) >> 26
	h[3] += c[2]
	h[2] -= c[2] << 26
	c[6] = (h[6] + (1 << 25)) >> 26
	h[7] += c[6]
	h[6] -= c[6] << 26
	c[3] = (h[3] + (1 << 24)) >> 25
	h[4] += c[3]
	h[3] -= c[3] << 25
	c[7] = (h[7] + (1 << 24)) >> 25
	h[8] += c[7]
	h[7] -= c[7] << 25
	c[4] = (h[4] + (1 << 25)) >> 26
	h[5] += c[4]
	h[4] -= c[4] << 26
	c[8] = (h[8] + (1 << 25)) >> 26
	h[9] += c[8]
	h[8] -= c[8] << 26
	c[9] = (h[9] + (1 << 24)) >> 25
	h[0] += c[9] * 19
	h[9] -= c[9] << 25
	c[0] = (h[0] + (1 << 25)) >> 26
	h[1] += c[0]
	h[0] -= c[0] << 26

	return fieldElement{h[0], h[1], h[2], h[3], h[4], h[5], h[6], h[7], h[8], h[9]}
}

func feSquare(f fieldElement) fieldElement { return feMul(f, f) }

// feMul121666 multiplies by (A+2)/4 = 121666, used in the Montgomery
// ladder's doubling step as BB + 121666*E, which equals RFC 7748's
// AA + 121665*E since AA = BB + E.
func feMul121666(f fieldElement) fieldElement {
	var h [10]int64
	for i := range f {
		h[i] = f[i] * 121666
	}
	return feCarry(h)
}

// feInvert computes f^-1 = f^(p-2) via addition-chain exponentiation
// (p = 2^255-19).
func feInvert(f fieldElement) fieldElement {
	z2 := feSquare(f)
	z8 := feSquare(feSquare(z2))
	z9 := feMul(z8, f)
	z11 := feMul(z9, z2)
	z22 := feSquare(z11)
	z_5_0 := feMul(z22, z9)

	z_10_5 := z_5_0
	for i := 0; i < 5; i++ {
		z_10_5 = feSquare(z_10_5)
	}
	z_10_0 := feMul(z_10_5, z_5_0)

	z_20_10 := z_10_0
	for i := 0; i < 10; i++ {
		z_20_10 = feSquare(z_20_10)
	}
	z_20_0 := feMul(z_20_10, z_10_0)

	z_40_20 := z_20_0
	for i := 0; i < 20; i++ {
		z_40_20 = feSquare(z_40_20)
	}
	z_40_0 := feMul(z_40_20, z_20_0)

	z_50_10 := z_40_0
	for i := 0; i < 10; i++ {
		z_50_10 = feSquare(z_50_10)
	}
	z_50_0 := feMul(z_50_10, z_10_0)

	z_100_50 := z_50_0
	for i := 0; i < 50; i++ {
		z_100_50 = feSquare(z_100_50)
	}
	z_100_0 := feMul(z_100_50, z_50_0)

	z_200_100 := z_100_0
	for i := 0; i < 100; i++ {
		z_200_100 = feSquare(z_200_100)
	}
	z_200_0 := feMul(z_200_100, z_100_0)

	z_250_50 := z_200_0
	for i := 0; i < 50; i++ {
		z_250_50 = feSquare(z_250_50)
	}
	z_250_0 := feMul(z_250_50, z_50_0)

	z_255_5 := z_250_0
	for i := 0; i < 5; i++ {
		z_255_5 = feSquare(z_255_5)
	}
	return feMul(z_255_5, z11)
}

// feToBytes fully reduces f modulo p = 2^255-19 and serializes it to 32
// little-endian bytes, following the two-step reduction used by the
// reference ref10/donna fe_tobytes: first estimate and fold in the
// quotient by p, then run one more linear carry chain so every limb fits
// its nominal 26/25-bit width with no borrow remaining in h9.
func feToBytes(f fieldElement) [32]byte {
	h := f
	bits := [10]uint{26, 25, 26, 25, 26, 25, 26, 25, 26, 25}

	q := (19*h[9] + (1 << 24)) >> 25
	for i := 0; i < 10; i++ {
		q = (h[i] + q) >> bits[i]
	}
	h[0] += 19 * q

	var c int64
	for i := 0; i < 10; i++ {
		h[i] += c
		c = h[i] >> bits[i]
		h[i] -= c << bits[i]
	}

	var out [32]byte
	out[0] = byte(h[0])
	out[1] = byte(h[0] >> 8)
	out[2] = byte(h[0] >> 16)
	out[3] = byte(h[0]>>24) | byte(h[1]<<2)
	out[4] = byte(h[1] >> 6)
	out[5] = byte(h[1] >> 14)
	out[6] = byte(h[1]>>22) | byte(h[2]<<3)
	out[7] = byte(h[2] >> 5)
	out[8] = byte(h[2] >> 13)
	out[9] = byte(h[2]>>21) | byte(h[3]<<5)
	out[10] = byte(h[3] >> 3)
	out[11] = byte(h[3] >> 11)
	out[12] = byte(h[3]>>19) | byte(h[4]<<6)
	out[13] = byte(h[4] >> 2)
	out[14] = byte(h[4] >> 10)
	out[15] = byte(h[4] >> 18)
	out[16] = byte(h[5])
	out[17] = byte(h[5] >> 8)
	out[18] = byte(h[5] >> 16)
	out[19] = byte(h[5]>>24) | byte(h[6]<<1)
	out[20] = byte(h[6] >> 7)
	out[21] = byte(h[6] >> 15)
	out[22] = byte(h[6]>>23) | byte(h[7]<<3)
	out[23] = byte(h[7] >> 5)
	out[24] = byte(h[7] >> 13)
	out[25] = byte(h[7]>>21) | byte(h[8]<<4)
	out[26] = byte(h[8] >> 4)
	out[27] = byte(h[8] >> 12)
	out[28] = byte(h[8]>>20) | byte(h[9]<<6)
	out[29] = byte(h[9] >> 2)
	out[30] = byte(h[9] >> 10)
	out[31] = byte(h[9] >> 18)
	return out
}

// X25519 performs the Montgomery-ladder scalar multiplication of RFC 7748
// §5, clamping the scalar per §5 before the 255-iteration ladder.
func X25519(scalar, point [32]byte) [32]byte {
	scalar[0] &= 248
	scalar[31] &= 127
	scalar[31] |= 64

	x1 := feFromBytes(point)
	x2 := fieldElement{1}
	z2 := fieldElement{}
	x3 := x1
	z3 := fieldElement{1}
	swap := int64(0)

	for pos := 254; pos >= 0; pos-- {
		b := int64((scalar[pos/8] >> uint(pos%8)) & 1)
		swap ^= b
		x2, x3 = feCSwap(x2, x3, swap)
		z2, z3 = feCSwap(z2, z3, swap)
		swap = b

		a := feAdd(x2, z2)
		aa := feSquare(a)
		b2 := feSub(x2, z2)
		bb := feSquare(b2)
		e := feSub(aa, bb)
		c := feAdd(x3, z3)
		d := feSub(x3, z3)
		da := feMul(d, a)
		cb := feMul(c, b2)

		x3 = feSquare(feAdd(da, cb))
		z3 = feMul(x1, feSquare(feSub(da, cb)))
		x2 = feMul(aa, bb)
		z2 = feMul(e, feAdd(bb, feMul121666(e)))
	}
	x2, x3 = feCSwap(x2, x3, swap)
	z2, z3 = feCSwap(z2, z3, swap)

	zInv := feInvert(z2)
	out := feMul(x2, zInv)
	return feToBytes(out)
}

// feCSwap conditionally swaps a and b in constant time when swap == 1.
func feCSwap(a, b fieldElement, swap int64) (fieldElement, fieldElement) {
	mask := -swap
	for i := range a {
		t := mask & (a[i] ^ b[i])
		a[i] ^= t
		b[i] ^= t
	}
	return a, b
}

// X25519BasePoint is the encoding of u = 9, the fixed base point (RFC 7748 §4.1).
var X25519BasePoint = [32]byte{9}

// X25519PublicKey computes the public key for a clamped private scalar.
func X25519PublicKey(privateKey [32]byte) [32]byte {
	return X25519(privateKey, X25519BasePoint)
}
