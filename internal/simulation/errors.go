package simulation

import "errors"

// ErrNotEnoughSpawnPoints means more vehicles were requested than the map has
// cul-de-sacs to spawn them on
var ErrNotEnoughSpawnPoints = errors.New("not enough spawn points")
