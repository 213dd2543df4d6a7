// Package redis connects to Redis with go-redis and exposes a small,
// prefix-namespaced key-value Storage used as the shared subscription cache.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	store := redis.NewStorage(client, cfg.KeyPrefix)
//	err = store.Set(ctx, "sub:"+id.String(), payload, time.Minute)
//
// Healthcheck returns a probe suitable for the HTTP health endpoint.
package redis
