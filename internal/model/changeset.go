package model

type Field string

const (
	FieldContracts  Field = "contracts"
	FieldCustomer   Field = "customer"
	FieldAmount     Field = "amount"
	FieldBaseAmount Field = "base_amount"
)

// ChangeSet names the fields touched by one write.
type ChangeSet []Field

func (cs ChangeSet) With(f Field) ChangeSet {
	if cs.Has(f) {
		return cs
	}
	return append(cs, f)
}

func (cs ChangeSet) Has(f Field) bool {
	for _, item := range cs {
		if item == f {
			return true
		}
	}
	return false
}

func (cs ChangeSet) Any(fields ...Field) bool {
	for _, f := range fields {
		if cs.Has(f) {
			return true
		}
	}
	return false
}
