package spec

import "github.com/wasit-fuzz/wasit/errs"

func recordOverflowErr(member string, offset, size, recordSize uint32) error {
	return errs.New(errs.PhaseResource, errs.KindInvalidData).
		Path("record", member).
		Detail("member at offset %d size %d overflows record size %d", offset, size, recordSize).
		Build()
}

func variantOverflowErr(payloadEnd, variantSize uint32) error {
	return errs.New(errs.PhaseResource, errs.KindInvalidData).
		Path("variant").
		Detail("payload region end %d overflows variant size %d", payloadEnd, variantSize).
		Build()
}

func bitflagsOverflowErr(numMembers int, repr IntKind) error {
	return errs.New(errs.PhaseResource, errs.KindInvalidData).
		Path("bitflags").
		Detail("%d members do not fit in %s", numMembers, repr).
		Build()
}
