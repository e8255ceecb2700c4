package input

import (
	"context"
	"encoding/json"
	"os"

	"git.fiblab.net/general/common/v2/mongoutil"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/perimeter-control/utils/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

var log = logrus.WithField("module", "input")

// Input 输入数据
// 功能：存储控制系统启动所需的所有输入数据
type Input struct {
	Intersections *config.IntersectionSet
}

// Init 加载输入数据
// 功能：根据配置初始化并加载路口配置数据
// 参数：c-配置对象，cacheDir-缓存目录
// 返回：加载完成的输入数据指针
// 算法说明：
// 1. 缓存检查：验证缓存目录的有效性
// 2. 文件加载：如果指定了文件路径则直接从JSON文件加载
// 3. 数据库加载：否则连接MongoDB，从指定集合加载，并写入本地缓存
// 4. 数据验证：加载后统一执行配置校验，非法配置直接panic终止启动
func Init(c config.Config, cacheDir string) (res *Input) {
	useCache := preCheckCache(cacheDir)
	if !useCache {
		cacheDir = ""
	}

	res = &Input{}

	path := c.Input.Intersections
	if path.File != "" {
		res.Intersections = mustLoadFile(path.File)
	} else if path.DB != "" && path.Col != "" {
		res.Intersections = mustLoadMongo(c.Input.URI, path, cacheDir)
	} else {
		log.Warn("no intersection config source specified, use builtin default")
		res.Intersections = config.DefaultIntersectionSet()
	}

	if err := res.Intersections.Validate(); err != nil {
		log.Panicf("invalid intersection config: %v", err)
	}
	log.Infof("loaded %d intersections, %d signals",
		len(res.Intersections.IntersectionIDs), len(res.Intersections.Signals))
	return
}

// mustLoadFile 从JSON文件加载路口配置
// 功能：读取并解析JSON配置文件，失败时panic
func mustLoadFile(file string) *config.IntersectionSet {
	data, err := os.ReadFile(file)
	if err != nil {
		log.Panicf("failed to load intersection config from file: %v", err)
	}
	var s config.IntersectionSet
	if err := json.Unmarshal(data, &s); err != nil {
		log.Panicf("failed to parse intersection config %s: %v", file, err)
	}
	return &s
}

// mustLoadMongo 从MongoDB加载路口配置
// 功能：连接MongoDB并从配置的集合中读取路口配置文档，支持本地缓存
// 参数：uri-连接字符串，path-输入路径配置，cacheDir-缓存目录（为空则禁用缓存）
// 返回：加载的路口配置
// 算法说明：
// 1. 缓存优先：缓存文件存在则直接从缓存加载
// 2. only_cache模式下缓存缺失视为致命错误
// 3. 否则连接数据库，取集合中的首个文档按BSON解码
// 4. 下载成功后写回缓存文件，供下次启动使用
func mustLoadMongo(uri string, path config.InputPath, cacheDir string) *config.IntersectionSet {
	if cacheDir != "" {
		cachePath := cacheDir + "/" + path.GetCachePath()
		if _, err := os.Stat(cachePath); err == nil {
			log.Infof("load intersection config from cache %s", cachePath)
			return mustLoadFile(cachePath)
		}
	}
	if path.OnlyCache {
		log.Panicf("cache-only mode but no cache for %s.%s", path.GetDb(), path.GetColl())
	}
	if uri == "" {
		log.Panic("mongodb uri must be specified to load intersection config")
	}

	client := mongoutil.NewClient(uri)
	defer client.Disconnect(context.Background())
	coll := mongoutil.GetMongoColl(client, path)

	log.Infof("start fetching from %s.%s", path.GetDb(), path.GetColl())
	var s config.IntersectionSet
	if err := coll.FindOne(context.Background(), bson.M{}).Decode(&s); err != nil {
		if err == mongo.ErrNoDocuments {
			log.Panicf("no intersection config document in %s.%s", path.GetDb(), path.GetColl())
		}
		log.Panicf("failed to fetch intersection config: %v", err)
	}
	log.Infof("finish fetching from %s.%s", path.GetDb(), path.GetColl())

	if cacheDir != "" {
		writeCache(cacheDir+"/"+path.GetCachePath(), &s)
	}
	return &s
}

// writeCache 将路口配置写入本地缓存文件
// 说明：缓存写入失败只记录日志，不影响启动
func writeCache(cachePath string, s *config.IntersectionSet) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		log.Errorf("failed to encode cache: %v", err)
		return
	}
	if err := os.WriteFile(cachePath, data, 0o644); err != nil {
		log.Errorf("failed to write cache %s: %v", cachePath, err)
		return
	}
	log.Infof("write intersection config cache to %s", cachePath)
}
