package ratelimit

import (
	"fmt"
	"time"
)

func ExampleMustThrottle() {
	greet := MustThrottle(Quota{MaxCalls: 2, Window: time.Minute}, func(name string) string {
		return "hello " + name
	})

	for _, name := range []string{"ada", "bob", "cy"} {
		if msg, ok := greet(name); ok {
			fmt.Println(msg)
		} else {
			fmt.Println("throttled:", name)
		}
	}
	// Output:
	// hello ada
	// hello bob
	// throttled: cy
}

func ExampleRegistry() {
	r := NewRegistry()
	lim := r.MustGet("reports", Quota{MaxCalls: 1, Window: time.Hour})

	fmt.Println(Do(lim, func() { fmt.Println("report generated") }))
	fmt.Println(Do(lim, func() { fmt.Println("report generated") }))
	// Output:
	// report generated
	// true
	// false
}
