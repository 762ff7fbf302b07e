package qd

// ComplexDD is a complex number whose real and imaginary parts are each DD
// values, used by the DD-precision perturbation boards (§4.3.b).
type ComplexDD struct {
	Re, Im DD
}

// ComplexQD is a complex number whose real and imaginary parts are each QD
// values, used by the reference-orbit manager (§4.2) and the QD-precision
// boards.
type ComplexQD struct {
	Re, Im QD
}

// AddC returns a+b.
func AddC(a, b ComplexDD) ComplexDD {
	return ComplexDD{AddDD(a.Re, b.Re), AddDD(a.Im, b.Im)}
}

// SubC returns a-b.
func SubC(a, b ComplexDD) ComplexDD {
	return ComplexDD{SubDD(a.Re, b.Re), SubDD(a.Im, b.Im)}
}

// MulC returns a*b = (ac-bd) + (ad+bc)i.
func MulC(a, b ComplexDD) ComplexDD {
	ac := MulDD(a.Re, b.Re)
	bd := MulDD(a.Im, b.Im)
	ad := MulDD(a.Re, b.Im)
	bc := MulDD(a.Im, b.Re)
	return ComplexDD{SubDD(ac, bd), AddDD(ad, bc)}
}

// SquareC returns a*a = (re^2 - im^2) + (2*re*im)i.
func SquareC(a ComplexDD) ComplexDD {
	re2 := SquareDD(a.Re)
	im2 := SquareDD(a.Im)
	cross := MulDD(a.Re, a.Im)
	return ComplexDD{SubDD(re2, im2), Double(cross)}
}

// DoubleC returns a+a for a ComplexDD, the complex counterpart of Double.
func DoubleC(a ComplexDD) ComplexDD { return ComplexDD{Double(a.Re), Double(a.Im)} }

// NormSqC returns |a|^2 = re^2+im^2, in DD precision.
func NormSqC(a ComplexDD) DD {
	return AddDD(SquareDD(a.Re), SquareDD(a.Im))
}

// ChebyshevC returns max(|re|, |im|), the max-component (Chebyshev) norm
// used throughout the rebasing and periodicity tests (§4.2, §4.3.b).
func ChebyshevC(a ComplexDD) DD {
	re, im := Abs(a.Re), Abs(a.Im)
	if Compare(re, im) >= 0 {
		return re
	}
	return im
}

// AddCQ, SubCQ, MulCQ, SquareCQ, NormSqCQ, ChebyshevCQ mirror the DD
// operations above at QD precision, used by the reference-orbit manager.

func AddCQ(a, b ComplexQD) ComplexQD {
	return ComplexQD{AddQD(a.Re, b.Re), AddQD(a.Im, b.Im)}
}

func SubCQ(a, b ComplexQD) ComplexQD {
	return ComplexQD{SubQD(a.Re, b.Re), SubQD(a.Im, b.Im)}
}

func MulCQ(a, b ComplexQD) ComplexQD {
	ac := MulQD(a.Re, b.Re)
	bd := MulQD(a.Im, b.Im)
	ad := MulQD(a.Re, b.Im)
	bc := MulQD(a.Im, b.Re)
	return ComplexQD{SubQD(ac, bd), AddQD(ad, bc)}
}

func SquareCQ(a ComplexQD) ComplexQD {
	re2 := SquareQD(a.Re)
	im2 := SquareQD(a.Im)
	cross := MulQD(a.Re, a.Im)
	return ComplexQD{SubQD(re2, im2), DoubleQD(cross)}
}

// DoubleCQ returns a+a for a ComplexQD, the complex counterpart of DoubleQD.
func DoubleCQ(a ComplexQD) ComplexQD { return ComplexQD{DoubleQD(a.Re), DoubleQD(a.Im)} }

// PowC raises a to the n-th power (n>=1) by repeated complex
// multiplication, the DD-precision counterpart to PowCQ.
func PowC(a ComplexDD, n uint) ComplexDD {
	if n == 0 {
		return ComplexDD{NewDD(1), Zero}
	}
	result := a
	for i := uint(1); i < n; i++ {
		result = MulC(result, a)
	}
	return result
}

// PowCQ raises a to the n-th power (n>=1) by repeated complex
// multiplication, used to generalize §4.3 kernels beyond exponent 2.
func PowCQ(a ComplexQD, n uint) ComplexQD {
	if n == 0 {
		return ComplexQD{NewQD(1), QDZero}
	}
	result := a
	for i := uint(1); i < n; i++ {
		result = MulCQ(result, a)
	}
	return result
}

func NormSqCQ(a ComplexQD) QD {
	return AddQD(SquareQD(a.Re), SquareQD(a.Im))
}

func ChebyshevCQ(a ComplexQD) QD {
	re, im := AbsQD(a.Re), AbsQD(a.Im)
	if CompareQD(re, im) >= 0 {
		return re
	}
	return im
}

// ToComplexDD narrows a ComplexQD down to ComplexDD precision, used when a
// DD-precision perturbation pixel reads a point off the QD reference orbit.
func (a ComplexQD) ToComplexDD() ComplexDD {
	return ComplexDD{a.Re.ToDD(), a.Im.ToDD()}
}

// Float64 returns the (re,im) float64 approximation of a ComplexDD, used by
// the DD-precision boards' convergence tests and renderer-facing accessors.
func (a ComplexDD) Float64() (re, im float64) {
	return a.Re.Float64(), a.Im.Float64()
}
