package db

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/sparks/internal/config"
)

// NewSnowflakeNode returns the id generator for this process. Replicas writing
// to the same database need distinct SNOWFLAKE_NODE values.
func NewSnowflakeNode(cfg config.Config) (*snowflake.Node, error) {
	node, err := snowflake.NewNode(cfg.SnowflakeNode)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", cfg.SnowflakeNode, err)
	}
	return node, nil
}
