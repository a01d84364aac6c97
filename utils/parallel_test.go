package utils

import (
	"context"
	"sync/atomic"
	"testing"

	"go.viam.com/test"
)

func TestGroupWorkParallel(t *testing.T) {
	for _, total := range []int{0, 1, ParallelFactor, 3*ParallelFactor + 2, 1001} {
		var groups int
		seen := make([]int32, total)
		var done int32
		err := GroupWorkParallel(
			context.Background(),
			total,
			func(numGroups int) {
				groups = numGroups
			},
			func(groupNum, groupSize, from, to int) (MemberWorkFunc, GroupWorkDoneFunc) {
				return func(memberNum, workNum int) {
						atomic.AddInt32(&seen[workNum], 1)
					}, func() {
						atomic.AddInt32(&done, 1)
					}
			},
		)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, groups, test.ShouldEqual, ParallelFactor)
		test.That(t, int(done), test.ShouldEqual, ParallelFactor)
		for _, n := range seen {
			test.That(t, n, test.ShouldEqual, int32(1))
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := GroupWorkParallel(ctx, 10, func(int) {}, func(int, int, int, int) (MemberWorkFunc, GroupWorkDoneFunc) {
		t.Fatal("no work expected")
		return nil, nil
	})
	test.That(t, err, test.ShouldBeError, context.Canceled)
}
