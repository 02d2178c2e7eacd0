package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cohelm/brrr"
)

// fibArgs/stringArgs/greetArgs mirror brrr_demo.py's task signatures:
// fib(n: int, salt=None), fib_and_print(n: str, salt=None), hello(greetee: str).
type fibArgs struct {
	N    int    `msgpack:"n"`
	Salt string `msgpack:"salt,omitempty"`
}

type fibAndPrintArgs struct {
	N    string `msgpack:"n"`
	Salt string `msgpack:"salt,omitempty"`
}

type helloArgs struct {
	Greetee string `msgpack:"greetee"`
}

// registerDemoTasks registers the three example tasks brrr_demo.py ships
// (fib, fib_and_print, hello), so `brrr schedule` has something to
// exercise out of the box. Grounded on original_source/brrr_demo.py.
func registerDemoTasks(b *brrr.Brrr) {
	var fib *brrr.TaskHandle[fibArgs, int]
	fib = brrr.RegisterTask(b, "fib", func(ctx context.Context, a fibArgs) (int, error) {
		if a.N <= 1 {
			return a.N, nil
		}
		results, err := fib.Map(ctx, []fibArgs{
			{N: a.N - 2, Salt: a.Salt},
			{N: a.N - 1, Salt: a.Salt},
		})
		if err != nil {
			return 0, err
		}
		return results[0] + results[1], nil
	})

	brrr.RegisterTask(b, "fib_and_print", func(ctx context.Context, a fibAndPrintArgs) (int, error) {
		n, err := strconv.Atoi(a.N)
		if err != nil {
			return 0, fmt.Errorf("fib_and_print: invalid n %q: %w", a.N, err)
		}
		f, err := fib.Call(ctx, fibArgs{N: n, Salt: a.Salt})
		if err != nil {
			return 0, err
		}
		fmt.Printf("fib(%s) = %d\n", a.N, f)
		return f, nil
	})

	brrr.RegisterTask(b, "hello", func(_ context.Context, a helloArgs) (string, error) {
		greeting := fmt.Sprintf("Hello, %s!", a.Greetee)
		fmt.Println(greeting)
		return greeting, nil
	})
}
