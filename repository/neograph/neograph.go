package neograph

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"deeptrace-backend-controller/logging"
	"deeptrace-backend-controller/repository/metadata"
	"deeptrace-backend-controller/utils"
	"github.com/neo4j/neo4j-go-driver/v4/neo4j"
)

var ErrDisabled = errors.New("neo4j mirror is disabled")

type Config struct {
	Enabled bool
	Host    string
	Port    int
	User    string
	Pwd     string
}

func (c *Config) uri() string {
	return fmt.Sprintf("neo4j://%s:%d", c.Host, c.Port)
}

func GenerateTestConfig() *Config {
	return &Config{
		Enabled: true,
		Host:    "localhost",
		Port:    7687,
		User:    "neo4j",
		Pwd:     "deeptrace",
	}
}

var (
	lock   sync.RWMutex
	driver neo4j.Driver
)

// Init 连接 neo4j，未启用时什么都不做，之后的 MirrorClue 为空操作。
func Init(config *Config) error {
	if !config.Enabled {
		return nil
	}

	d, err := neo4j.NewDriver(config.uri(), neo4j.BasicAuth(config.User, config.Pwd, ""))
	if err != nil {
		return utils.WrapErrorf(err, "create neo4j driver for [%s] fail", config.uri())
	}

	if err := d.VerifyConnectivity(); err != nil {
		_ = d.Close()
		return utils.WrapErrorf(err, "connect neo4j [%s] fail", config.uri())
	}

	lock.Lock()
	defer lock.Unlock()
	if driver != nil {
		_ = driver.Close()
	}
	driver = d
	return nil
}

func Enabled() bool {
	lock.RLock()
	defer lock.RUnlock()
	return driver != nil
}

func Close() error {
	lock.Lock()
	defer lock.Unlock()

	if driver == nil {
		return nil
	}
	err := driver.Close()
	driver = nil
	return err
}

// Execute 在一个写事务中执行 cypher。
func Execute(cypher string, params map[string]interface{}) (neo4j.ResultSummary, error) {
	lock.RLock()
	defer lock.RUnlock()

	if driver == nil {
		return nil, ErrDisabled
	}

	session := driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	summary, err := session.WriteTransaction(func(tx neo4j.Transaction) (interface{}, error) {
		result, err := tx.Run(cypher, params)
		if err != nil {
			return nil, err
		}
		return result.Consume()
	})
	if err != nil {
		return nil, utils.WrapError(err, "run cypher fail")
	}

	return summary.(neo4j.ResultSummary), nil
}

const mirrorClueCypher = `
MERGE (c:Clue {id: $clue_id})
SET c.subject = $subject, c.org = $org
WITH c
UNWIND $entities AS ent
MERGE (e:Entity {name: ent.name, type: ent.type})
SET e.id = ent.id
MERGE (c)-[:MENTIONS]->(e)`

func mirrorClueParams(clue *metadata.Clue, entities []metadata.Entity) map[string]interface{} {
	list := make([]interface{}, 0, len(entities))
	for _, entity := range entities {
		list = append(list, map[string]interface{}{
			"id":   int64(entity.ID),
			"name": entity.Name,
			"type": string(entity.Type),
		})
	}

	return map[string]interface{}{
		"clue_id":  int64(clue.ID),
		"subject":  utils.PtrToStr(clue.Subject),
		"org":      utils.PtrToStr(clue.Org),
		"entities": list,
	}
}

// Mirror 把分析完成的线索同步为 (:Clue)-[:MENTIONS]->(:Entity)。
type Mirror struct{}

func (Mirror) MirrorClue(ctx context.Context, clue *metadata.Clue, entities []metadata.Entity) error {
	if !Enabled() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	summary, err := Execute(mirrorClueCypher, mirrorClueParams(clue, entities))
	if err != nil {
		return utils.WrapErrorf(err, "mirror clue[%d] fail", clue.ID)
	}

	counters := summary.Counters()
	logging.Default().Debugf("mirror clue[%d]: %d nodes, %d relationships created",
		clue.ID, counters.NodesCreated(), counters.RelationshipsCreated())
	return nil
}
