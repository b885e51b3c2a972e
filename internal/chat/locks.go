package chat

import (
	"hash/fnv"
	"sync"
)

const lockShards = 64

// chatLocks — взаимное исключение на уровне чата для мутирующих операций:
// два одновременных SendMessage по одному чату не должны потерять инкремент,
// а два AddParticipants — оба пройти проверку "ещё не участник". Шардирование
// по id: операции над разными чатами идут параллельно (коллизия шарда лишь
// сериализует, корректность не страдает).
type chatLocks struct {
	shards [lockShards]sync.Mutex
}

func (l *chatLocks) forChat(chatID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(chatID))
	return &l.shards[h.Sum32()%lockShards]
}
