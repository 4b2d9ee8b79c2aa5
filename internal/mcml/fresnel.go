package mcml

import "math"

// fresnel returns the unpolarised reflectance for a photon hitting an
// interface from index ni into index nt with incidence cosine ca1 (>0),
// and the cosine of the transmission angle.
func fresnel(ni, nt, ca1 Real) (r, ca2 Real) {
	switch {
	case ni == nt:
		return 0, ca1
	case ca1 > cosZero:
		r = (nt - ni) / (nt + ni)
		return r * r, 1
	case ca1 < cos90D:
		return 1, 0
	}
	sa1 := math.Sqrt(1 - ca1*ca1)
	sa2 := ni / nt * sa1
	if sa2 >= 1 {
		return 1, 0
	}
	ca2 = math.Sqrt(1 - sa2*sa2)
	cp := ca1*ca2 - sa1*sa2 // c+ = cc - ss
	cm := ca1*ca2 + sa1*sa2 // c- = cc + ss
	sp := sa1*ca2 + ca1*sa2 // s+ = sc + cs
	sm := sa1*ca2 - ca1*sa2 // s- = sc - cs
	r = 0.5 * sm * sm * (cm*cm + cp*cp) / (sp * sp * cm * cm)
	return r, ca2
}
