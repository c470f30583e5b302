/*
Package middleware composes independently written request handlers into one
request/response pipeline.

A Runner resolves its handler chain once, from configuration and a Registry of
factories, and then executes it per request against a host-neutral
HandlerContext. Each handler receives a continuation; the first call runs the
rest of the chain and later calls do nothing. A handler that returns without
calling it short-circuits the chain.

	r := middleware.NewRunner(middleware.Options{
		Cmd:      middleware.CmdDev,
		Config:   cfg,
		Registry: middleware.NewDefaultRegistry(),
	})
	err := r.Run(ctx, hc)

Host adapters translate the HandlerContext back into their own response type
when Response.Written reports true, and fall through otherwise.
*/
package middleware
