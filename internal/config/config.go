package config

import (
	"os"
	"strconv"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	RAG         RAGConfig
	Embedding   EmbeddingConfig
	VectorStore VectorStoreConfig
	Chat        ChatConfig
	Upload      UploadConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type DatabaseConfig struct {
	// URL 为空时进入降级模式：会话/消息持久化接口返回503，其余接口照常工作
	URL string
}

type RAGConfig struct {
	ChunkSize      int
	ChunkOverlap   int
	TopK           int
	HistoryWindow  int
	RequestTimeout int // 秒，作用于嵌入、检索、生成等外部调用
}

type EmbeddingConfig struct {
	Model      string
	Dimensions int
	BatchSize  int
}

type VectorStoreConfig struct {
	Provider string // pinecone | milvus | memory
	Pinecone PineconeConfig
	Milvus   MilvusConfig
}

type PineconeConfig struct {
	APIKey    string
	IndexName string
	IndexHost string // 数据面地址，如 https://xxx.svc.aped-xxx.pinecone.io
}

type MilvusConfig struct {
	Address    string
	Username   string
	Password   string
	Collection string
	Database   string
	TLS        bool
	Distance   string
}

type ChatConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type UploadConfig struct {
	MaxSize      int64
	AllowedTypes []string
}

var AppConfig *Config

func LoadConfig() error {
	// 设置默认值
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("database.url", "")

	// RAG管线默认值
	viper.SetDefault("rag.chunk_size", 2000)
	viper.SetDefault("rag.chunk_overlap", 200)
	viper.SetDefault("rag.top_k", 4)
	viper.SetDefault("rag.history_window", 10)
	viper.SetDefault("rag.request_timeout_seconds", 60)

	// 嵌入模型默认值（Pinecone Inference，1024维）
	viper.SetDefault("embedding.model", "llama-text-embed-v2")
	viper.SetDefault("embedding.dimensions", 1024)
	viper.SetDefault("embedding.batch_size", 90)

	// 向量存储默认值
	viper.SetDefault("vector_store.provider", "pinecone")
	viper.SetDefault("vector_store.pinecone.index_name", "djrag")
	viper.SetDefault("vector_store.milvus.address", "localhost:19530")
	viper.SetDefault("vector_store.milvus.collection", "doc_chunks")
	viper.SetDefault("vector_store.milvus.database", "default")
	viper.SetDefault("vector_store.milvus.tls", false)
	viper.SetDefault("vector_store.milvus.distance", "cosine")

	// 聊天模型默认值（Gemini的OpenAI兼容端点）
	viper.SetDefault("chat.model", "gemini-2.5-flash")
	viper.SetDefault("chat.base_url", "https://generativelanguage.googleapis.com/v1beta/openai/")

	// 文件上传默认值
	viper.SetDefault("upload.max_size", 15728640) // 15MB
	viper.SetDefault("upload.allowed_types", []string{".pdf", ".docx", ".xlsx", ".csv"})

	viper.SetEnvPrefix("DJRAG")
	viper.AutomaticEnv()

	// 从环境变量读取
	if port := os.Getenv("PORT"); port != "" {
		viper.Set("server.port", port)
	}
	if env := os.Getenv("ENV"); env != "" {
		viper.Set("server.env", env)
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		viper.Set("database.url", dbURL)
	}
	if pineconeKey := os.Getenv("PINECONE_API_KEY"); pineconeKey != "" {
		viper.Set("vector_store.pinecone.api_key", pineconeKey)
	}
	if pineconeIndex := os.Getenv("PINECONE_INDEX_NAME"); pineconeIndex != "" {
		viper.Set("vector_store.pinecone.index_name", pineconeIndex)
	}
	if pineconeHost := os.Getenv("PINECONE_INDEX_HOST"); pineconeHost != "" {
		viper.Set("vector_store.pinecone.index_host", pineconeHost)
	}
	if provider := os.Getenv("VECTOR_STORE_PROVIDER"); provider != "" {
		viper.Set("vector_store.provider", provider)
	}
	if milvusAddr := os.Getenv("MILVUS_ADDRESS"); milvusAddr != "" {
		viper.Set("vector_store.milvus.address", milvusAddr)
		// 显式给出Milvus地址时默认切换到Milvus
		if os.Getenv("VECTOR_STORE_PROVIDER") == "" {
			viper.Set("vector_store.provider", "milvus")
		}
	}
	if milvusUser := os.Getenv("MILVUS_USERNAME"); milvusUser != "" {
		viper.Set("vector_store.milvus.username", milvusUser)
	}
	if milvusPass := os.Getenv("MILVUS_PASSWORD"); milvusPass != "" {
		viper.Set("vector_store.milvus.password", milvusPass)
	}
	if googleKey := os.Getenv("GOOGLE_API_KEY"); googleKey != "" {
		viper.Set("chat.api_key", googleKey)
	}
	if chatModel := os.Getenv("CHAT_MODEL"); chatModel != "" {
		viper.Set("chat.model", chatModel)
	}
	if chatBaseURL := os.Getenv("CHAT_BASE_URL"); chatBaseURL != "" {
		viper.Set("chat.base_url", chatBaseURL)
	}
	if embeddingModel := os.Getenv("EMBEDDING_MODEL"); embeddingModel != "" {
		viper.Set("embedding.model", embeddingModel)
	}
	if dims := os.Getenv("EMBEDDING_DIMENSIONS"); dims != "" {
		if n, err := strconv.Atoi(dims); err == nil && n > 0 {
			viper.Set("embedding.dimensions", n)
		}
	}
	if maxSize := os.Getenv("MAX_UPLOAD_SIZE"); maxSize != "" {
		viper.Set("upload.max_size", maxSize)
	}

	AppConfig = &Config{
		Server: ServerConfig{
			Port: viper.GetString("server.port"),
			Env:  viper.GetString("server.env"),
		},
		Database: DatabaseConfig{
			URL: viper.GetString("database.url"),
		},
		RAG: RAGConfig{
			ChunkSize:      viper.GetInt("rag.chunk_size"),
			ChunkOverlap:   viper.GetInt("rag.chunk_overlap"),
			TopK:           viper.GetInt("rag.top_k"),
			HistoryWindow:  viper.GetInt("rag.history_window"),
			RequestTimeout: viper.GetInt("rag.request_timeout_seconds"),
		},
		Embedding: EmbeddingConfig{
			Model:      viper.GetString("embedding.model"),
			Dimensions: viper.GetInt("embedding.dimensions"),
			BatchSize:  viper.GetInt("embedding.batch_size"),
		},
		VectorStore: VectorStoreConfig{
			Provider: viper.GetString("vector_store.provider"),
			Pinecone: PineconeConfig{
				APIKey:    viper.GetString("vector_store.pinecone.api_key"),
				IndexName: viper.GetString("vector_store.pinecone.index_name"),
				IndexHost: viper.GetString("vector_store.pinecone.index_host"),
			},
			Milvus: MilvusConfig{
				Address:    viper.GetString("vector_store.milvus.address"),
				Username:   viper.GetString("vector_store.milvus.username"),
				Password:   viper.GetString("vector_store.milvus.password"),
				Collection: viper.GetString("vector_store.milvus.collection"),
				Database:   viper.GetString("vector_store.milvus.database"),
				TLS:        viper.GetBool("vector_store.milvus.tls"),
				Distance:   viper.GetString("vector_store.milvus.distance"),
			},
		},
		Chat: ChatConfig{
			APIKey:  viper.GetString("chat.api_key"),
			Model:   viper.GetString("chat.model"),
			BaseURL: viper.GetString("chat.base_url"),
		},
		Upload: UploadConfig{
			MaxSize:      viper.GetInt64("upload.max_size"),
			AllowedTypes: viper.GetStringSlice("upload.allowed_types"),
		},
	}

	return nil
}

// GetAppConfig 获取全局配置（未加载时回退到默认配置）
func GetAppConfig() *Config {
	if AppConfig == nil {
		_ = LoadConfig()
	}
	return AppConfig
}
