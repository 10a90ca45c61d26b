package testutil

// Runner is satisfied by testify suites (s.Run).
type Runner interface {
	Run(name string, subtest func()) bool
}

// Given, When and Then name nested suite subtests after the step they describe.
func Given(r Runner, desc string, fn func()) bool {
	return r.Run("given "+desc, fn)
}

func When(r Runner, desc string, fn func()) bool {
	return r.Run("when "+desc, fn)
}

func Then(r Runner, desc string, fn func()) bool {
	return r.Run("then "+desc, fn)
}
