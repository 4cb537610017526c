package loom

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func Test_PanicToError(t *testing.T) {
	Convey("an already-error panic value passes through unchanged", t, func() {
		boom := errors.New("boom")
		So(panicToError(boom), ShouldEqual, boom)
	})

	Convey("a non-error panic value is wrapped in a PanicError", t, func() {
		err := panicToError("not an error")
		var pe *PanicError
		So(errors.As(err, &pe), ShouldBeTrue)
		So(pe.Value, ShouldEqual, "not an error")
		So(pe.Error(), ShouldContainSubstring, "not an error")
	})
}
