package transform

import "fmt"

// Func is a pure buffer transform.
type Func func(src []byte) ([]byte, error)

// Operator pairs a forward transform with its exact inverse.
type Operator struct {
	Name    string
	Forward Func
	Inverse Func
}

// String returns the operator name.
func (o Operator) String() string { return o.Name }

// XORWith XORs against ref in both directions.
func XORWith(ref []byte) Operator {
	f := func(src []byte) ([]byte, error) { return XOR(src, ref) }
	return Operator{Name: "xor", Forward: f, Inverse: f}
}

// RotateLeftBy rotates left by n bits; the inverse rotates right.
func RotateLeftBy(n int) Operator {
	return Operator{
		Name:    fmt.Sprintf("rotl(%d)", n),
		Forward: func(src []byte) ([]byte, error) { return RotateLeft(src, n), nil },
		Inverse: func(src []byte) ([]byte, error) { return RotateRight(src, n), nil },
	}
}

// RotateRightBy rotates right by n bits; the inverse rotates left.
func RotateRightBy(n int) Operator {
	return Operator{
		Name:    fmt.Sprintf("rotr(%d)", n),
		Forward: func(src []byte) ([]byte, error) { return RotateRight(src, n), nil },
		Inverse: func(src []byte) ([]byte, error) { return RotateLeft(src, n), nil },
	}
}

// AddMask adds mask over count triplets from seed; the inverse subtracts.
func AddMask(mask []byte, seed, count int) Operator {
	return Operator{
		Name:    fmt.Sprintf("addmask(seed=%d,n=%d)", seed, count),
		Forward: func(src []byte) ([]byte, error) { return AdditiveMask(src, mask, seed, count), nil },
		Inverse: func(src []byte) ([]byte, error) { return SubtractiveMask(src, mask, seed, count), nil },
	}
}

// SubMask subtracts mask over count triplets from seed; the inverse adds.
func SubMask(mask []byte, seed, count int) Operator {
	return Operator{
		Name:    fmt.Sprintf("submask(seed=%d,n=%d)", seed, count),
		Forward: func(src []byte) ([]byte, error) { return SubtractiveMask(src, mask, seed, count), nil },
		Inverse: func(src []byte) ([]byte, error) { return AdditiveMask(src, mask, seed, count), nil },
	}
}

// Then composes two operators: forward applies first then second, inverse
// undoes second then first.
func Then(first, second Operator) Operator {
	return Operator{
		Name: first.Name + "+" + second.Name,
		Forward: func(src []byte) ([]byte, error) {
			mid, err := first.Forward(src)
			if err != nil {
				return nil, err
			}
			return second.Forward(mid)
		},
		Inverse: func(src []byte) ([]byte, error) {
			mid, err := second.Inverse(src)
			if err != nil {
				return nil, err
			}
			return first.Inverse(mid)
		},
	}
}
