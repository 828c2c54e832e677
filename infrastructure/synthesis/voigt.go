package synthesis

import (
	"math"
	"math/cmplx"
)

// Voigt returns H(a, u), the real part of the Faddeeva function
// w(u + ia), using Humlicek's W4 rational approximation. H(0, 0) = 1 and
// H(0, u) = exp(-u^2).
func Voigt(a, u float64) float64 {
	return real(humlicek(a, u))
}

func humlicek(a, u float64) complex128 {
	t := complex(a, -u)
	s := math.Abs(u) + a

	switch {
	case s >= 15:
		return t * 0.5641896 / (0.5 + t*t)
	case s >= 5.5:
		u2 := t * t
		return t * (1.410474 + u2*0.5641896) / (0.75 + u2*(3+u2))
	case a >= 0.195*math.Abs(u)-0.176:
		return (16.4955 + t*(20.20933+t*(11.96482+t*(3.778987+t*0.5642236)))) /
			(16.4955 + t*(38.82363+t*(39.27121+t*(21.69274+t*(6.699398+t)))))
	default:
		u2 := t * t
		num := t * (36183.31 - u2*(3321.9905-u2*(1540.787-u2*(219.0313-u2*(35.76683-u2*(1.320522-u2*0.56419))))))
		den := 32066.6 - u2*(24322.84-u2*(9022.228-u2*(2186.181-u2*(364.2191-u2*(61.57037-u2*(1.841439-u2))))))
		return cmplx.Exp(u2) - num/den
	}
}
